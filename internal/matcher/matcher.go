// Package matcher evaluates single match criteria against transactions.
//
// Two kinds of criterion exist: a substring term tested against the record's
// name, and an exact amount. Matching is pure and total; a record missing the
// column a criterion needs simply does not match.
package matcher

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"budgetpipe/internal/core"
)

// Kind selects how a criterion is evaluated.
type Kind int

const (
	KindTerm Kind = iota
	KindAmount
)

func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "term"
	case KindAmount:
		return "amount"
	}
	return "unknown"
}

var ErrEmptyTerm = errors.New("empty search term")

// Criterion is one match rule. Negate is carried for callers that combine
// criteria; Match itself evaluates the un-negated predicate.
type Criterion struct {
	Kind   Kind
	Term   string // normalized
	Raw    string
	Amount decimal.Decimal
	Negate bool
}

// Term builds a substring criterion. The term is trimmed and case-folded.
func Term(raw string) (Criterion, error) {
	norm := Normalize(raw)
	if norm == "" {
		return Criterion{}, ErrEmptyTerm
	}
	return Criterion{Kind: KindTerm, Term: norm, Raw: raw}, nil
}

// Amount builds an exact-amount criterion.
func Amount(d decimal.Decimal) Criterion {
	return Criterion{Kind: KindAmount, Amount: d, Raw: d.String()}
}

// Not returns c with Negate set.
func Not(c Criterion) Criterion {
	c.Negate = true
	return c
}

func (c Criterion) String() string {
	if c.Negate {
		return "!" + c.Raw
	}
	return c.Raw
}

// Normalize trims and Unicode case-folds s.
func Normalize(s string) string {
	// A Caser keeps state, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(s))
}

// Matcher holds the options that apply to every criterion of a run.
type Matcher struct {
	// IncludeMerchantName also searches merchant_name for term criteria.
	IncludeMerchantName bool
}

// fold is swapped in tests to count normalizations.
var fold = Normalize

// Subject is a record prepared for matching: its text columns are folded once
// and reused for every criterion.
type Subject struct {
	name        string
	merchant    string
	amount      decimal.Decimal
	hasName     bool
	hasMerchant bool
	hasAmount   bool
}

// Subject prepares tx for matching against many criteria.
func (m Matcher) Subject(tx core.Transaction) Subject {
	var s Subject
	if name, err := tx.Name(); err == nil {
		s.name, s.hasName = fold(name), true
	}
	if m.IncludeMerchantName {
		if merchant, err := tx.MerchantName(); err == nil {
			s.merchant, s.hasMerchant = fold(merchant), true
		}
	}
	if amount, err := tx.Amount(); err == nil {
		s.amount, s.hasAmount = amount, true
	}
	return s
}

// Match reports whether s satisfies c, ignoring c.Negate.
func (s Subject) Match(c Criterion) bool {
	switch c.Kind {
	case KindTerm:
		if c.Term == "" {
			return false
		}
		return (s.hasName && strings.Contains(s.name, c.Term)) ||
			(s.hasMerchant && strings.Contains(s.merchant, c.Term))
	case KindAmount:
		return s.hasAmount && s.amount.Equal(c.Amount)
	}
	return false
}

// Match reports whether tx satisfies c, ignoring c.Negate.
func (m Matcher) Match(tx core.Transaction, c Criterion) bool {
	return m.Subject(tx).Match(c)
}

// Any reports whether any criterion matches, ignoring Negate.
func (m Matcher) Any(tx core.Transaction, cs []Criterion) bool {
	if len(cs) == 0 {
		return false
	}
	s := m.Subject(tx)
	for _, c := range cs {
		if s.Match(c) {
			return true
		}
	}
	return false
}

// Match evaluates c against tx with default options.
func Match(tx core.Transaction, c Criterion) bool {
	return Matcher{}.Match(tx, c)
}
