// Package core defines the transaction record that flows through the pipeline.
//
// A Transaction tracks which of its columns are present. Raw columns come from
// the upstream source; derived columns (month, category_1, category_2) only
// exist once the step that produces them has run. Reading an absent column
// returns a *MissingFieldError instead of a zero value.
package core

import (
	"encoding/json"
	"slices"

	"github.com/shopspring/decimal"
)

// Column names a field of a transaction record.
type Column string

const (
	ColumnDate           Column = "date"
	ColumnName           Column = "name"
	ColumnAmount         Column = "amount"
	ColumnCategoryPath   Column = "category_path"
	ColumnMerchantName   Column = "merchant_name"
	ColumnPaymentChannel Column = "payment_channel"
	ColumnAccountID      Column = "account_id"
	ColumnMonth          Column = "month"
	ColumnCategory1      Column = "category_1"
	ColumnCategory2      Column = "category_2"
)

// CanonicalColumns is the order columns are listed in when a record is rendered.
var CanonicalColumns = []Column{
	ColumnDate,
	ColumnMonth,
	ColumnName,
	ColumnMerchantName,
	ColumnCategoryPath,
	ColumnCategory1,
	ColumnCategory2,
	ColumnPaymentChannel,
	ColumnAccountID,
	ColumnAmount,
}

// ParseColumn maps a column name to a Column.
func ParseColumn(s string) (Column, bool) {
	for _, c := range CanonicalColumns {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type columnSet uint16

func bit(c Column) columnSet {
	i := slices.Index(CanonicalColumns, c)
	if i < 0 {
		return 0
	}
	return 1 << uint(i)
}

// Transaction is one ledger entry. It is a value type: the With* and Without
// helpers return modified copies and never touch the receiver.
type Transaction struct {
	date           string
	name           string
	amount         decimal.Decimal
	categoryPath   []string
	merchantName   string
	paymentChannel string
	accountID      string
	month          string
	category1      string
	category2      string

	columns columnSet
}

// NewTransaction builds a record carrying the four raw columns every source provides.
func NewTransaction(date, name string, amount decimal.Decimal, categoryPath []string) Transaction {
	return Transaction{}.
		WithDate(date).
		WithName(name).
		WithAmount(amount).
		WithCategoryPath(categoryPath)
}

// Has reports whether the column is present.
func (t Transaction) Has(c Column) bool {
	b := bit(c)
	return b != 0 && t.columns&b != 0
}

// Columns lists the present columns in canonical order.
func (t Transaction) Columns() []Column {
	out := make([]Column, 0, len(CanonicalColumns))
	for _, c := range CanonicalColumns {
		if t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (t Transaction) missing(c Column) error {
	return &MissingFieldError{Column: c, Index: -1}
}

func (t Transaction) Date() (string, error) {
	if !t.Has(ColumnDate) {
		return "", t.missing(ColumnDate)
	}
	return t.date, nil
}

func (t Transaction) Name() (string, error) {
	if !t.Has(ColumnName) {
		return "", t.missing(ColumnName)
	}
	return t.name, nil
}

func (t Transaction) Amount() (decimal.Decimal, error) {
	if !t.Has(ColumnAmount) {
		return decimal.Zero, t.missing(ColumnAmount)
	}
	return t.amount, nil
}

// CategoryPath returns a copy of the upstream category labels.
func (t Transaction) CategoryPath() ([]string, error) {
	if !t.Has(ColumnCategoryPath) {
		return nil, t.missing(ColumnCategoryPath)
	}
	return slices.Clone(t.categoryPath), nil
}

func (t Transaction) MerchantName() (string, error) {
	if !t.Has(ColumnMerchantName) {
		return "", t.missing(ColumnMerchantName)
	}
	return t.merchantName, nil
}

func (t Transaction) PaymentChannel() (string, error) {
	if !t.Has(ColumnPaymentChannel) {
		return "", t.missing(ColumnPaymentChannel)
	}
	return t.paymentChannel, nil
}

func (t Transaction) AccountID() (string, error) {
	if !t.Has(ColumnAccountID) {
		return "", t.missing(ColumnAccountID)
	}
	return t.accountID, nil
}

// Month is derived by the add_month step.
func (t Transaction) Month() (string, error) {
	if !t.Has(ColumnMonth) {
		return "", t.missing(ColumnMonth)
	}
	return t.month, nil
}

// Category1 is derived by add_cat_1 or assigned by the category mapper.
func (t Transaction) Category1() (string, error) {
	if !t.Has(ColumnCategory1) {
		return "", t.missing(ColumnCategory1)
	}
	return t.category1, nil
}

// Category2 is derived by add_cat_2.
func (t Transaction) Category2() (string, error) {
	if !t.Has(ColumnCategory2) {
		return "", t.missing(ColumnCategory2)
	}
	return t.category2, nil
}

func (t Transaction) WithDate(v string) Transaction {
	t.date = v
	t.columns |= bit(ColumnDate)
	return t
}

func (t Transaction) WithName(v string) Transaction {
	t.name = v
	t.columns |= bit(ColumnName)
	return t
}

func (t Transaction) WithAmount(v decimal.Decimal) Transaction {
	t.amount = v
	t.columns |= bit(ColumnAmount)
	return t
}

// WithCategoryPath stores a copy of path; at most two labels are meaningful
// but longer paths are kept as given.
func (t Transaction) WithCategoryPath(path []string) Transaction {
	t.categoryPath = slices.Clone(path)
	t.columns |= bit(ColumnCategoryPath)
	return t
}

func (t Transaction) WithMerchantName(v string) Transaction {
	t.merchantName = v
	t.columns |= bit(ColumnMerchantName)
	return t
}

func (t Transaction) WithPaymentChannel(v string) Transaction {
	t.paymentChannel = v
	t.columns |= bit(ColumnPaymentChannel)
	return t
}

func (t Transaction) WithAccountID(v string) Transaction {
	t.accountID = v
	t.columns |= bit(ColumnAccountID)
	return t
}

func (t Transaction) WithMonth(v string) Transaction {
	t.month = v
	t.columns |= bit(ColumnMonth)
	return t
}

func (t Transaction) WithCategory1(v string) Transaction {
	t.category1 = v
	t.columns |= bit(ColumnCategory1)
	return t
}

func (t Transaction) WithCategory2(v string) Transaction {
	t.category2 = v
	t.columns |= bit(ColumnCategory2)
	return t
}

// Only keeps the listed columns and drops every other one.
func (t Transaction) Only(keep ...Column) Transaction {
	var mask columnSet
	for _, c := range keep {
		mask |= bit(c)
	}
	var drop []Column
	for _, c := range t.Columns() {
		if mask&bit(c) == 0 {
			drop = append(drop, c)
		}
	}
	return t.Without(drop...)
}

// Without drops the listed columns, clearing their values.
func (t Transaction) Without(cols ...Column) Transaction {
	for _, c := range cols {
		switch c {
		case ColumnDate:
			t.date = ""
		case ColumnName:
			t.name = ""
		case ColumnAmount:
			t.amount = decimal.Zero
		case ColumnCategoryPath:
			t.categoryPath = nil
		case ColumnMerchantName:
			t.merchantName = ""
		case ColumnPaymentChannel:
			t.paymentChannel = ""
		case ColumnAccountID:
			t.accountID = ""
		case ColumnMonth:
			t.month = ""
		case ColumnCategory1:
			t.category1 = ""
		case ColumnCategory2:
			t.category2 = ""
		}
		t.columns &^= bit(c)
	}
	return t
}

// Value renders a column as text. Amounts use their exact decimal form and the
// category path is rendered as a JSON array.
func (t Transaction) Value(c Column) (string, error) {
	if !t.Has(c) {
		return "", t.missing(c)
	}
	switch c {
	case ColumnDate:
		return t.date, nil
	case ColumnName:
		return t.name, nil
	case ColumnAmount:
		return t.amount.String(), nil
	case ColumnCategoryPath:
		path := t.categoryPath
		if path == nil {
			path = []string{}
		}
		b, err := json.Marshal(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case ColumnMerchantName:
		return t.merchantName, nil
	case ColumnPaymentChannel:
		return t.paymentChannel, nil
	case ColumnAccountID:
		return t.accountID, nil
	case ColumnMonth:
		return t.month, nil
	case ColumnCategory1:
		return t.category1, nil
	case ColumnCategory2:
		return t.category2, nil
	}
	return "", t.missing(c)
}

// Equal compares presence and values. Amounts compare by decimal value.
func (t Transaction) Equal(o Transaction) bool {
	if t.columns != o.columns {
		return false
	}
	return t.date == o.date &&
		t.name == o.name &&
		t.amount.Equal(o.amount) &&
		slices.Equal(t.categoryPath, o.categoryPath) &&
		t.merchantName == o.merchantName &&
		t.paymentChannel == o.paymentChannel &&
		t.accountID == o.accountID &&
		t.month == o.month &&
		t.category1 == o.category1 &&
		t.category2 == o.category2
}

// Table is an ordered sequence of transactions.
type Table []Transaction

// Clone returns a copy that shares nothing with t.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	for i, tx := range t {
		out[i] = tx.detach()
	}
	return out
}

// detach re-copies the category path so the result does not alias the
// receiver's backing array.
func (t Transaction) detach() Transaction {
	if t.Has(ColumnCategoryPath) {
		t.categoryPath = slices.Clone(t.categoryPath)
	}
	return t
}

// Equal compares two tables record by record.
func (t Table) Equal(o Table) bool {
	return slices.EqualFunc(t, o, Transaction.Equal)
}

// Columns returns the union of present columns in canonical order.
func (t Table) Columns() []Column {
	var set columnSet
	for _, tx := range t {
		set |= tx.columns
	}
	out := make([]Column, 0, len(CanonicalColumns))
	for _, c := range CanonicalColumns {
		if set&bit(c) != 0 {
			out = append(out, c)
		}
	}
	return out
}
