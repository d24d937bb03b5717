package pipeline

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpipe/internal/core"
	"budgetpipe/internal/rules"
)

func config(t *testing.T, doc string) *rules.Config {
	t.Helper()
	cfg, err := rules.Parse([]byte(doc), rules.FormatJSON)
	require.NoError(t, err)
	return cfg
}

func table(t *testing.T, doc string) core.Table {
	t.Helper()
	var out core.Table
	require.NoError(t, json.Unmarshal([]byte(doc), &out))
	return out
}

const ledger = `[
  {"date": "2024-03-05", "name": "Whole Foods Market", "amount": 54.32, "category_path": ["Food and Drink", "Groceries"], "account_id": "checking"},
  {"date": "2024-03-06", "name": "AutoPay - Credit Card", "amount": 1200, "category_path": ["Payment", "Credit Card"], "account_id": "checking"},
  {"date": "2024-03-07", "name": "Landlord Payment", "amount": 500.00, "category_path": ["Transfer", "Debit"], "account_id": "checking"},
  {"date": "2024-03-08", "name": "Uber Eats", "amount": 23.10, "category_path": ["Food and Drink", "Restaurants"], "account_id": "credit"},
  {"date": "2024-03-09", "name": "Interest", "amount": -1.25, "category_path": ["Interest"], "account_id": "savings"},
  {"date": "2024-03-10", "name": "", "amount": 300, "category_path": ["Transfer"], "account_id": "checking"}
]`

func TestEndToEndScenario(t *testing.T) {
	in := table(t, `[{"date":"2024-03-05","name":"Whole Foods Market","amount":54.32,"category_path":["Food and Drink","Groceries"]}]`)
	cfg := config(t, `{"transformations":["add_month","add_cat_1","add_cat_2"],"remove_transactions":[],"custom_category_map":{}}`)

	res, err := Run(in, cfg)
	require.NoError(t, err)

	out, err := json.Marshal(res.Table)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"date":"2024-03-05","month":"2024-03","name":"Whole Foods Market",
		"category_path":["Food and Drink","Groceries"],"category_1":"Food and Drink","category_2":"Groceries","amount":54.32}]`, string(out))
}

func TestFirstMatchWins(t *testing.T) {
	in := table(t, `[{"date":"2024-03-07","name":"Landlord Payment","amount":500.00,"category_path":[]}]`)
	cfg := config(t, `{"transformations":["add_cat_1"],"custom_category_map":{"Rent":["Landlord"],"Transfers":[500.00]}}`)

	res, err := Run(in, cfg)
	require.NoError(t, err)
	c1, err := res.Table[0].Category1()
	require.NoError(t, err)
	assert.Equal(t, "Rent", c1)
	assert.Equal(t, 1, res.Stats.Recategorized)
}

func TestRemovalIsCaseInsensitiveSubstring(t *testing.T) {
	cfg := config(t, `{"remove_transactions":["autopay"]}`)
	res, err := Run(table(t, ledger), cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.RemovedByTerm)
	for _, tx := range res.Table {
		name, _ := tx.Name()
		assert.NotEqual(t, "AutoPay - Credit Card", name)
	}
}

func TestTransformationOrderIndependence(t *testing.T) {
	a, err := Run(table(t, ledger), config(t, `{"transformations":["add_cat_2","add_cat_1","add_month"]}`))
	require.NoError(t, err)
	b, err := Run(table(t, ledger), config(t, `{"transformations":["add_month","add_cat_1","add_cat_2"]}`))
	require.NoError(t, err)
	assert.True(t, a.Table.Equal(b.Table))
}

func TestProjectionRunsLast(t *testing.T) {
	res, err := Run(table(t, ledger), config(t, `{"transformations":["important_cols","add_month"]}`))
	require.NoError(t, err)

	for _, tx := range res.Table {
		assert.True(t, tx.Has(core.ColumnMonth))
		assert.False(t, tx.Has(core.ColumnCategoryPath))
		assert.False(t, tx.Has(core.ColumnAccountID))
	}
	assert.Equal(t, []string{"add_month", "important_cols"}, stepNames(res))
}

func TestIdempotence(t *testing.T) {
	configs := []string{
		`{"transformations":["add_month","add_cat_1","add_cat_2"],"remove_transactions":["autopay"],
		  "custom_category_map":{"Rent":["Landlord"],"Rideshare":["Uber","!Eats"]}}`,
		`{"transformations":["add_month","add_cat_1","add_cat_2","important_cols","remove_transfers"],
		  "remove_transactions":["autopay"],"remove_account_ids":["savings"],
		  "custom_category_map":{"Rent":["Landlord"],"Transfers":[500]},
		  "category_renaming_map":{"Food and Drink":"Food"}}`,
		`{"transformations":["add_cat_1","important_cols"],
		  "custom_category_map":{"NotEats":["!Eats"],"Nothing":[]},
		  "category_renaming_map":{"Food and Drink":"Food","Food":"Food"}}`,
	}
	for _, doc := range configs {
		cfg := config(t, doc)
		once, err := Run(table(t, ledger), cfg)
		require.NoError(t, err)
		twice, err := Run(once.Table, cfg)
		require.NoError(t, err)
		assert.True(t, once.Table.Equal(twice.Table), doc)
	}

	// Chained renames would move Food to Meals on a second run.
	_, err := rules.Parse([]byte(`{"transformations":["add_cat_1","important_cols"],
		"category_renaming_map":{"Food and Drink":"Food","Food":"Meals"}}`), rules.FormatJSON)
	var cve *rules.ConfigValidationError
	require.ErrorAs(t, err, &cve)
	assert.Equal(t, "category_renaming_map.Food and Drink", cve.Path)
}

func TestFullPipeline(t *testing.T) {
	cfg := config(t, `{
		"transformations": ["important_cols", "add_cat_1", "add_cat_2", "add_month", "remove_transfers"],
		"remove_transactions": ["AutoPay"],
		"remove_account_ids": ["savings"],
		"custom_category_map": {"Rent": ["Landlord"], "Takeout": ["eats"]},
		"category_renaming_map": {"Food and Drink": "Food"}
	}`)
	in := table(t, ledger)

	res, err := Run(in, cfg)
	require.NoError(t, err)

	assert.Equal(t, Stats{
		Input:              6,
		RemovedByAccount:   1,
		RemovedByTerm:      1,
		RemovedByTransform: 1,
		Recategorized:      2,
		Output:             3,
	}, res.Stats)

	type row struct{ name, c1, c2 string }
	var got []row
	for _, tx := range res.Table {
		name, _ := tx.Name()
		c1, _ := tx.Category1()
		c2, _ := tx.Category2()
		got = append(got, row{name, c1, c2})
	}
	assert.Equal(t, []row{
		{"Whole Foods Market", "Food", "Groceries"},
		{"Landlord Payment", "Rent", ""},
		{"Uber Eats", "Takeout", ""},
	}, got)

	// The caller's table is untouched.
	assert.True(t, in.Equal(table(t, ledger)))
}

func TestErrorsCarryRecordIndex(t *testing.T) {
	in := table(t, `[{"date":"2024-03-05","name":"a","amount":1},{"date":"yesterday","name":"b","amount":2}]`)
	_, err := Run(in, config(t, `{"transformations":["add_month"]}`))

	var invalid *core.InvalidDateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, invalid.Index)
	assert.Equal(t, "yesterday", invalid.Value)
}

func TestNilConfig(t *testing.T) {
	_, err := Run(nil, nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestConcurrentRunsDoNotInterfere(t *testing.T) {
	cfgA := config(t, `{"transformations":["add_cat_1"],"custom_category_map":{"A":["uber"]}}`)
	cfgB := config(t, `{"transformations":["add_cat_1"],"custom_category_map":{"B":["uber"]}}`)
	in := table(t, ledger)

	var wg sync.WaitGroup
	results := make([]Result, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := cfgA
			if i%2 == 1 {
				cfg = cfgB
			}
			res, err := Run(in, cfg)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		want := "A"
		if i%2 == 1 {
			want = "B"
		}
		c1, _ := res.Table[3].Category1()
		assert.Equal(t, want, c1)
	}
}

func stepNames(res Result) []string {
	out := make([]string, len(res.Steps))
	for i, s := range res.Steps {
		out[i] = string(s)
	}
	return out
}
