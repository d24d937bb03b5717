package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MarshalJSON emits only the present columns. Amounts are written as JSON
// numbers carrying their exact decimal text.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.Columns() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(string(c))
		buf.Write(key)
		buf.WriteByte(':')

		var (
			val []byte
			err error
		)
		switch c {
		case ColumnAmount:
			val = []byte(t.amount.String())
		case ColumnCategoryPath:
			path := t.categoryPath
			if path == nil {
				path = []string{}
			}
			val, err = json.Marshal(path)
		default:
			s, _ := t.Value(c)
			val, err = json.Marshal(s)
		}
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", c, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a record object. Keys that are not known columns are
// ignored; "category" is accepted as an alias of "category_path". A null value
// leaves the column absent.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["category"]; ok {
		if _, dup := raw[string(ColumnCategoryPath)]; !dup {
			raw[string(ColumnCategoryPath)] = v
		}
	}

	var out Transaction
	for key, v := range raw {
		c, ok := ParseColumn(key)
		if !ok || isNull(v) {
			continue
		}
		switch c {
		case ColumnAmount:
			var d decimal.Decimal
			if err := d.UnmarshalJSON(v); err != nil {
				return fmt.Errorf("amount: %w", ErrInvalidAmount)
			}
			out = out.WithAmount(d)
		case ColumnCategoryPath:
			path, err := decodeCategoryPath(v)
			if err != nil {
				return err
			}
			out = out.WithCategoryPath(path)
		default:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("%s: expected string: %w", c, err)
			}
			out = out.set(c, s)
		}
	}
	*t = out
	return nil
}

func (t Transaction) set(c Column, v string) Transaction {
	switch c {
	case ColumnDate:
		return t.WithDate(v)
	case ColumnName:
		return t.WithName(v)
	case ColumnMerchantName:
		return t.WithMerchantName(v)
	case ColumnPaymentChannel:
		return t.WithPaymentChannel(v)
	case ColumnAccountID:
		return t.WithAccountID(v)
	case ColumnMonth:
		return t.WithMonth(v)
	case ColumnCategory1:
		return t.WithCategory1(v)
	case ColumnCategory2:
		return t.WithCategory2(v)
	}
	return t
}

// SetText stores a text rendering of a column, the inverse of Value. It is
// used by tabular codecs.
func (t Transaction) SetText(c Column, v string) (Transaction, error) {
	switch c {
	case ColumnAmount:
		d, err := ParseAmount(v)
		if err != nil {
			return t, fmt.Errorf("amount %q: %w", v, err)
		}
		return t.WithAmount(d), nil
	case ColumnCategoryPath:
		path, err := ParseCategoryPath(v)
		if err != nil {
			return t, err
		}
		return t.WithCategoryPath(path), nil
	}
	return t.set(c, v), nil
}

func decodeCategoryPath(v json.RawMessage) ([]string, error) {
	var path []string
	if err := json.Unmarshal(v, &path); err == nil {
		return path, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, fmt.Errorf("category_path: expected list or string")
	}
	return ParseCategoryPath(s)
}

// ParseCategoryPath reads the textual forms a category path arrives in: a JSON
// array (["Food and Drink","Groceries"]), a list literal with single quotes
// (['Food and Drink', 'Groceries']) or a ">"-separated path
// (Food and Drink > Groceries). An empty string is an empty path.
func ParseCategoryPath(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(s, "[") {
		var path []string
		if err := json.Unmarshal([]byte(s), &path); err == nil {
			return path, nil
		}
		quoted := strings.ReplaceAll(s, "'", `"`)
		if err := json.Unmarshal([]byte(quoted), &path); err == nil {
			return path, nil
		}
		return nil, fmt.Errorf("category_path %q: malformed list", s)
	}
	parts := strings.Split(s, ">")
	path := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			path = append(path, p)
		}
	}
	return path, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
