package ledger

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpipe/internal/core"
)

const plaidCSV = `date,name,merchant_name,category,payment_channel,amount,iso_currency_code
2024-03-05,Whole Foods Market,Whole Foods,"['Food and Drink', 'Groceries']",in store,54.32,USD
2024-03-06,Uber 063015 SF**POOL**,,Travel > Taxi,online,6.33,USD
`

func TestReadCSV(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(plaidCSV))
	require.NoError(t, err)
	require.Len(t, table, 2)

	path, err := table[0].CategoryPath()
	require.NoError(t, err)
	assert.Equal(t, []string{"Food and Drink", "Groceries"}, path)

	merchant, err := table[0].MerchantName()
	require.NoError(t, err)
	assert.Equal(t, "Whole Foods", merchant)

	assert.False(t, table[1].Has(core.ColumnMerchantName))
	path, _ = table[1].CategoryPath()
	assert.Equal(t, []string{"Travel", "Taxi"}, path)

	amount, _ := table[1].Amount()
	assert.Equal(t, "6.33", amount.String())
}

func TestReadCSVBadAmount(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,name,amount\n2024-01-01,x,lots\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv line 2")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestCSVRoundTripKeepsColumns(t *testing.T) {
	in := core.Table{
		core.NewTransaction("2024-03-05", "Whole Foods Market", core.MustAmount("54.32"), []string{"Food and Drink", "Groceries"}).
			WithMonth("2024-03").
			WithCategory1("Food and Drink"),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))
	assert.Equal(t, "date,month,name,category_path,category_1,amount\n"+
		`2024-03-05,2024-03,Whole Foods Market,"[""Food and Drink"",""Groceries""]",Food and Drink,54.32`+"\n", buf.String())

	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}

func TestJSONFiles(t *testing.T) {
	dir := t.TempDir()
	in := core.Table{core.NewTransaction("2024-03-05", "Shell", core.MustAmount("-40.10"), []string{"Travel", "Gas"}).WithAccountID("acc")}

	for _, name := range []string{"out.json", "out.csv"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, in))
		got, err := ReadFile(path)
		require.NoError(t, err)
		assert.True(t, in.Equal(got), name)
	}
}

func TestEmptyInputs(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, table)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFromRowsSkipsBlankRows(t *testing.T) {
	table, err := FromRows(
		[]string{"date", "name", "amount", "notes"},
		[][]string{
			{"2024-01-02", "Spotify", "9.99", "ignored"},
			{"", "", ""},
			{"2024-01-03", "Netflix", "15.49"},
		})
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.False(t, table[1].Has(core.ColumnCategoryPath))

	_, err = FromRows([]string{"amount"}, [][]string{{"x"}})
	assert.ErrorContains(t, err, "row 1")
}
