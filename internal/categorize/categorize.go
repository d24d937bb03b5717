// Package categorize applies user-defined category overrides.
package categorize

import (
	"budgetpipe/internal/core"
	"budgetpipe/internal/matcher"
)

// Rule assigns Label to records matched by Criteria. A rule matches when at
// least one positive criterion matches and no negated criterion does.
type Rule struct {
	Label    string
	Criteria []matcher.Criterion
}

// Matches reports whether the rule applies to tx.
func (r Rule) Matches(m matcher.Matcher, tx core.Transaction) bool {
	return r.MatchesSubject(m.Subject(tx))
}

// MatchesSubject is Matches for a record already prepared by the matcher.
func (r Rule) MatchesSubject(s matcher.Subject) bool {
	hit := false
	for _, c := range r.Criteria {
		if c.Negate {
			if s.Match(c) {
				return false
			}
			continue
		}
		if !hit && s.Match(c) {
			hit = true
		}
	}
	return hit
}

// Mapper applies rules in order; the first matching rule wins.
type Mapper struct {
	Rules   []Rule
	Renames map[string]string
	Matcher matcher.Matcher
}

// Apply returns a new table with overrides applied and the number of records
// a rule matched. A matched record gets the rule label in category_1 and, if
// it has one, an emptied category_2. Renames then rewrite category_1 values.
func (m Mapper) Apply(t core.Table) (core.Table, int) {
	out := make(core.Table, len(t))
	matched := 0
	for i, tx := range t {
		if rule, ok := m.firstMatch(tx); ok {
			tx = tx.WithCategory1(rule.Label)
			if tx.Has(core.ColumnCategory2) {
				tx = tx.WithCategory2("")
			}
			matched++
		}
		out[i] = m.rename(tx)
	}
	return out, matched
}

func (m Mapper) firstMatch(tx core.Transaction) (Rule, bool) {
	if len(m.Rules) == 0 {
		return Rule{}, false
	}
	s := m.Matcher.Subject(tx)
	for _, r := range m.Rules {
		if r.MatchesSubject(s) {
			return r, true
		}
	}
	return Rule{}, false
}

func (m Mapper) rename(tx core.Transaction) core.Transaction {
	if len(m.Renames) == 0 {
		return tx
	}
	current, err := tx.Category1()
	if err != nil {
		return tx
	}
	if to, ok := m.Renames[current]; ok {
		return tx.WithCategory1(to)
	}
	return tx
}
