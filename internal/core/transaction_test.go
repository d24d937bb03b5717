package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedColumnsAbsentUntilSet(t *testing.T) {
	tx := NewTransaction("2024-03-05", "Whole Foods Market", MustAmount("54.32"), []string{"Food and Drink", "Groceries"})

	for _, read := range []func() (string, error){tx.Month, tx.Category1, tx.Category2, tx.MerchantName} {
		_, err := read()
		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, -1, missing.Index)
	}

	tx = tx.WithMonth("2024-03")
	month, err := tx.Month()
	require.NoError(t, err)
	assert.Equal(t, "2024-03", month)
}

func TestTransactionIsValue(t *testing.T) {
	path := []string{"Travel", "Taxi"}
	tx := NewTransaction("2024-01-01", "Uber", MustAmount("12"), path)
	path[0] = "mutated"

	got, err := tx.CategoryPath()
	require.NoError(t, err)
	assert.Equal(t, []string{"Travel", "Taxi"}, got)

	got[1] = "mutated"
	again, _ := tx.CategoryPath()
	assert.Equal(t, "Taxi", again[1])

	changed := tx.WithCategory1("Rides")
	assert.False(t, tx.Has(ColumnCategory1))
	assert.True(t, changed.Has(ColumnCategory1))
}

func TestOnlyDropsOtherColumns(t *testing.T) {
	tx := NewTransaction("2024-01-01", "Uber", MustAmount("12"), []string{"Travel"}).
		WithAccountID("acc-1").
		WithCategory1("Travel")

	projected := tx.Only(ColumnDate, ColumnName, ColumnAmount, ColumnCategory1, ColumnMonth)
	assert.Equal(t, []Column{ColumnDate, ColumnName, ColumnCategory1, ColumnAmount}, projected.Columns())

	_, err := projected.AccountID()
	assert.Error(t, err)
	_, err = projected.CategoryPath()
	assert.Error(t, err)
}

func TestTableCloneDoesNotAlias(t *testing.T) {
	table := Table{NewTransaction("2024-01-01", "A", MustAmount("1"), []string{"X"})}
	clone := table.Clone()
	clone[0] = clone[0].WithName("B")

	name, _ := table[0].Name()
	assert.Equal(t, "A", name)
	assert.True(t, table.Equal(Table{NewTransaction("2024-01-01", "A", MustAmount("1.00"), []string{"X"})}))
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"54.32", "54.32", true},
		{"500", "500", true},
		{"500.00", "500", true},
		{"-5", "-5", true},
		{"12,5", "12.5", true},
		{" 2.50 ", "2.5", true},
		{"", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(MustAmount(tc.out)), "got %s", got)
		})
	}
}

func TestMonthOf(t *testing.T) {
	m, err := MonthOf("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-03", m)

	m, err = MonthOf("2024-11-30T23:10:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-11", m)

	_, err = MonthOf("03/05/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestTransactionJSON(t *testing.T) {
	in := `{"date":"2024-03-05","name":"Whole Foods Market","amount":54.32,
		"category":["Food and Drink","Groceries"],"merchant_name":null,"iso_currency_code":"USD"}`

	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(in), &tx))
	assert.Equal(t, []Column{ColumnDate, ColumnName, ColumnCategoryPath, ColumnAmount}, tx.Columns())

	out, err := json.Marshal(tx.WithMonth("2024-03"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-05","month":"2024-03","name":"Whole Foods Market",
		"category_path":["Food and Drink","Groceries"],"amount":54.32}`, string(out))
}

func TestTransactionJSONRejectsBadAmount(t *testing.T) {
	var tx Transaction
	err := json.Unmarshal([]byte(`{"amount":"twelve"}`), &tx)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestParseCategoryPath(t *testing.T) {
	cases := map[string][]string{
		`["Food and Drink","Groceries"]`:   {"Food and Drink", "Groceries"},
		`['Transfer', 'Credit Card']`:      {"Transfer", "Credit Card"},
		"Food and Drink > Restaurants":     {"Food and Drink", "Restaurants"},
		"":                                 {},
		"Travel":                           {"Travel"},
	}
	for in, want := range cases {
		got, err := ParseCategoryPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCategoryPath("[broken")
	assert.Error(t, err)
}

func TestMissingFieldErrorMessage(t *testing.T) {
	err := (&MissingFieldError{Column: ColumnDate, Index: -1}).At("add_month", 3)
	assert.Equal(t, `add_month: missing field "date" (record 3)`, err.Error())
}
