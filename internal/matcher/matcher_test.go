package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpipe/internal/core"
)

func tx(name, amount string) core.Transaction {
	return core.NewTransaction("2024-01-01", name, core.MustAmount(amount), nil)
}

func mustTerm(t *testing.T, s string) Criterion {
	t.Helper()
	c, err := Term(s)
	require.NoError(t, err)
	return c
}

func TestTermMatching(t *testing.T) {
	tests := []struct {
		name   string
		record string
		term   string
		want   bool
	}{
		{"exact", "Uber", "Uber", true},
		{"substring", "Uber Eats", "Eats", true},
		{"case insensitive", "AutoPay - Credit Card", "autopay", true},
		{"term is trimmed", "LYFT RIDE", "  lyft ", true},
		{"record is trimmed", "  Netflix  ", "netflix", true},
		{"unicode fold sigma", "ΣΊΣΥΦΟΣ", "σίσυφος", true},
		{"no match", "Whole Foods", "Costco", false},
		{"partial word", "Landlord Payment", "land", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tx(tt.record, "1"), mustTerm(t, tt.term)))
		})
	}
}

func TestAmountMatchingIsExact(t *testing.T) {
	c := Amount(core.MustAmount("500"))
	assert.True(t, Match(tx("x", "500.00"), c))
	assert.True(t, Match(tx("x", "500"), c))
	assert.False(t, Match(tx("x", "500.01"), c))
	assert.False(t, Match(tx("x", "-500"), c))

	// 0.1 + 0.2 style drift cannot happen with decimals.
	sum := core.MustAmount("0.1").Add(core.MustAmount("0.2"))
	assert.True(t, Match(core.NewTransaction("2024-01-01", "x", sum, nil), Amount(core.MustAmount("0.3"))))
}

func TestMatchIsTotal(t *testing.T) {
	var empty core.Transaction
	assert.False(t, Match(empty, mustTerm(t, "uber")))
	assert.False(t, Match(empty, Amount(core.MustAmount("1"))))
	assert.False(t, Match(tx("x", "1"), Criterion{}))
	assert.False(t, Match(tx("x", "1"), Criterion{Kind: Kind(42)}))
}

func TestMerchantNameOption(t *testing.T) {
	record := tx("POS 4411", "9.99").WithMerchantName("Spotify")
	c := mustTerm(t, "spotify")

	assert.False(t, Matcher{}.Match(record, c))
	assert.True(t, Matcher{IncludeMerchantName: true}.Match(record, c))
}

func TestEmptyTermRejected(t *testing.T) {
	_, err := Term("   ")
	assert.ErrorIs(t, err, ErrEmptyTerm)
}

func TestAnyIgnoresNegate(t *testing.T) {
	record := tx("Uber Eats", "20")
	cs := []Criterion{Not(mustTerm(t, "eats"))}
	assert.True(t, Matcher{}.Any(record, cs))
	assert.Equal(t, "!eats", cs[0].String())
}

func countFolds(t *testing.T) *int {
	t.Helper()
	n := 0
	prev := fold
	fold = func(s string) string {
		n++
		return prev(s)
	}
	t.Cleanup(func() { fold = prev })
	return &n
}

func TestAnyFoldsEachColumnOnce(t *testing.T) {
	folds := countFolds(t)
	record := tx("UBER *TRIP", "12").WithMerchantName("Uber")
	cs := []Criterion{mustTerm(t, "lyft"), mustTerm(t, "bolt"), Amount(core.MustAmount("99")), mustTerm(t, "uber")}

	*folds = 0
	assert.True(t, Matcher{IncludeMerchantName: true}.Any(record, cs))
	assert.Equal(t, 2, *folds)

	*folds = 0
	assert.True(t, Matcher{}.Any(record, cs))
	assert.Equal(t, 1, *folds)
}

func TestSubjectMatchesLikeMatch(t *testing.T) {
	m := Matcher{IncludeMerchantName: true}
	record := tx("POS 4411", "500.00").WithMerchantName("Spotify")
	s := m.Subject(record)

	for _, c := range []Criterion{mustTerm(t, "spotify"), mustTerm(t, "pos"), mustTerm(t, "netflix"), Amount(core.MustAmount("500")), Amount(core.MustAmount("5"))} {
		assert.Equal(t, m.Match(record, c), s.Match(c), c.String())
	}

	var empty Subject
	assert.False(t, empty.Match(mustTerm(t, "pos")))
	assert.False(t, empty.Match(Amount(core.MustAmount("0"))))
}
