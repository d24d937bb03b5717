package google

import (
	"fmt"
	"strings"

	"budgetpipe/internal/core"
	"budgetpipe/internal/ledger"
)

// parseValues converts a values matrix as returned by the Sheets API into a
// table. The first row names the columns.
func parseValues(values [][]any) (core.Table, error) {
	if len(values) == 0 {
		return core.Table{}, nil
	}
	header := toStrings(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		rows = append(rows, toStrings(v))
	}
	t, err := ledger.FromRows(header, rows)
	if err != nil {
		return nil, fmt.Errorf("parse sheet: %w", err)
	}
	return t, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
