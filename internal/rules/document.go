package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"budgetpipe/internal/categorize"
	"budgetpipe/internal/matcher"
	"budgetpipe/internal/transform"
)

type valueKind int

const (
	kindNull valueKind = iota
	kindString
	kindNumber
	kindBool
	kindList
	kindMap
)

func (k valueKind) String() string {
	return [...]string{"null", "string", "number", "boolean", "list", "mapping"}[k]
}

// value is a decoded node of either document format. Mappings keep their
// entries in document order.
type value struct {
	kind    valueKind
	text    string // string content or number literal
	boolean bool
	list    []value
	entries []entry
}

type entry struct {
	key string
	val value
}

func (v value) lookup(key string) (value, bool) {
	for _, e := range v.entries {
		if e.key == key {
			return e.val, true
		}
	}
	return value{}, false
}

type document struct {
	root value
}

var recognizedKeys = []string{
	KeyTransformations,
	KeyRemoveTransactions,
	KeyCustomCategoryMap,
	KeyRemoveAccountIDs,
	KeyCategoryRenamingMap,
	KeyMatchMerchantName,
}

// section returns the mapping that holds the pipeline keys: the root, or the
// "settings" object when the root carries none of them.
func (d *document) section() (value, error) {
	if d.root.kind != kindMap {
		return value{}, invalid("", "expected a mapping at the top level, got %s", d.root.kind)
	}
	for _, e := range d.root.entries {
		if slices.Contains(recognizedKeys, e.key) {
			return d.root, nil
		}
	}
	if settings, ok := d.root.lookup(keySettings); ok {
		if settings.kind != kindMap {
			return value{}, invalid(keySettings, "expected a mapping, got %s", settings.kind)
		}
		return settings, nil
	}
	return d.root, nil
}

func (d *document) validate() (*Config, error) {
	sec, err := d.section()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, e := range sec.entries {
		if slices.Contains(recognizedKeys, e.key) {
			if seen[e.key] {
				return nil, invalid(e.key, "duplicate key")
			}
			seen[e.key] = true
		}
	}

	cfg := &Config{}
	if cfg.Transformations, err = parseTransformations(sec); err != nil {
		return nil, err
	}
	if cfg.RemoveTransactions, err = parseRemoveTransactions(sec); err != nil {
		return nil, err
	}
	if cfg.CustomCategoryMap, err = parseCategoryMap(sec); err != nil {
		return nil, err
	}
	if cfg.RemoveAccountIDs, err = stringList(sec, KeyRemoveAccountIDs); err != nil {
		return nil, err
	}
	if cfg.CategoryRenames, err = parseRenames(sec); err != nil {
		return nil, err
	}
	if v, ok := sec.lookup(KeyMatchMerchantName); ok && v.kind != kindNull {
		if v.kind != kindBool {
			return nil, invalid(KeyMatchMerchantName, "expected a boolean, got %s", v.kind)
		}
		cfg.MatchMerchantName = v.boolean
	}
	return cfg, nil
}

// list returns the list stored at key; a missing or null key is an empty list.
func list(sec value, key string) ([]value, error) {
	v, ok := sec.lookup(key)
	if !ok || v.kind == kindNull {
		return nil, nil
	}
	if v.kind != kindList {
		return nil, invalid(key, "expected a list, got %s", v.kind)
	}
	return v.list, nil
}

func stringList(sec value, key string) ([]string, error) {
	items, err := list(sec, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		if item.kind != kindString {
			return nil, invalid(fmt.Sprintf("%s[%d]", key, i), "expected a string, got %s", item.kind)
		}
		out = append(out, item.text)
	}
	return out, nil
}

func parseTransformations(sec value) ([]transform.Step, error) {
	names, err := stringList(sec, KeyTransformations)
	if err != nil {
		return nil, err
	}
	steps := make([]transform.Step, 0, len(names))
	for i, name := range names {
		step, ok := transform.Lookup(strings.TrimSpace(name))
		if !ok {
			return nil, &ConfigValidationError{
				Path: fmt.Sprintf("%s[%d]", KeyTransformations, i),
				Err:  &UnknownTransformationError{Name: name, Index: i},
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseRemoveTransactions(sec value) ([]matcher.Criterion, error) {
	terms, err := stringList(sec, KeyRemoveTransactions)
	if err != nil {
		return nil, err
	}
	out := make([]matcher.Criterion, 0, len(terms))
	for i, term := range terms {
		c, err := matcher.Term(term)
		if err != nil {
			return nil, &ConfigValidationError{Path: fmt.Sprintf("%s[%d]", KeyRemoveTransactions, i), Err: err}
		}
		out = append(out, c)
	}
	return out, nil
}

func parseCategoryMap(sec value) ([]categorize.Rule, error) {
	v, ok := sec.lookup(KeyCustomCategoryMap)
	if !ok || v.kind == kindNull {
		return nil, nil
	}
	if v.kind != kindMap {
		return nil, invalid(KeyCustomCategoryMap, "expected a mapping, got %s", v.kind)
	}

	rules := make([]categorize.Rule, 0, len(v.entries))
	seen := map[string]bool{}
	for _, e := range v.entries {
		path := KeyCustomCategoryMap + "." + e.key
		label := strings.TrimSpace(e.key)
		if label == "" {
			return nil, invalid(path, "empty category label")
		}
		if seen[e.key] {
			return nil, invalid(path, "duplicate category label")
		}
		seen[e.key] = true

		if e.val.kind != kindList {
			return nil, invalid(path, "expected a list of criteria, got %s", e.val.kind)
		}
		criteria, err := parseCriteria(path, e.val.list)
		if err != nil {
			return nil, err
		}
		rules = append(rules, categorize.Rule{Label: e.key, Criteria: criteria})
	}
	return rules, nil
}

// parseCriteria reads strings as name terms ("!term" negates) and numbers as
// exact amounts. An entry without a positive criterion is valid and never
// matches.
func parseCriteria(path string, items []value) ([]matcher.Criterion, error) {
	out := make([]matcher.Criterion, 0, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		switch item.kind {
		case kindString:
			raw, negate := strings.CutPrefix(item.text, "!")
			c, err := matcher.Term(raw)
			if err != nil {
				return nil, &ConfigValidationError{Path: itemPath, Err: err}
			}
			if negate {
				c = matcher.Not(c)
			}
			out = append(out, c)
		case kindNumber:
			d, err := decimal.NewFromString(item.text)
			if err != nil {
				return nil, invalid(itemPath, "amount %q is not a decimal number", item.text)
			}
			out = append(out, matcher.Amount(d))
		default:
			return nil, invalid(itemPath, "expected a string or a number, got %s", item.kind)
		}
	}
	return out, nil
}

func parseRenames(sec value) (map[string]string, error) {
	v, ok := sec.lookup(KeyCategoryRenamingMap)
	if !ok || v.kind == kindNull {
		return nil, nil
	}
	if v.kind != kindMap {
		return nil, invalid(KeyCategoryRenamingMap, "expected a mapping, got %s", v.kind)
	}
	out := make(map[string]string, len(v.entries))
	for _, e := range v.entries {
		if e.val.kind != kindString {
			return nil, invalid(KeyCategoryRenamingMap+"."+e.key, "expected a string, got %s", e.val.kind)
		}
		out[e.key] = e.val.text
	}
	// A rename target may not be renamed again.
	for _, e := range v.entries {
		to := out[e.key]
		if next, chained := out[to]; chained && next != to {
			return nil, invalid(KeyCategoryRenamingMap+"."+e.key, "target %q is renamed again", to)
		}
	}
	return out, nil
}
