// Package ledger reads and writes transaction tables as JSON or CSV files.
package ledger

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"budgetpipe/internal/core"
)

// Format of a table file.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var ErrUnknownFormat = errors.New("unknown table format")

// ParseFormat accepts "json" or "csv".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath picks the format from a file extension; JSON is the default.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// Read decodes a table in the given format.
func Read(r io.Reader, f Format) (core.Table, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Write encodes a table in the given format.
func Write(w io.Writer, t core.Table, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatJSON:
		return WriteJSON(w, t)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// ReadFile reads a table file, choosing the format by extension.
func ReadFile(path string) (core.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()
	return Read(f, FormatFromPath(path))
}

// WriteFile writes a table file, choosing the format by extension.
func WriteFile(path string, t core.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	if err := Write(f, t, FormatFromPath(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadJSON decodes a JSON array of transaction objects.
func ReadJSON(r io.Reader) (core.Table, error) {
	var t core.Table
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if t == nil {
		t = core.Table{}
	}
	return t, nil
}

// WriteJSON encodes t as an indented JSON array.
func WriteJSON(w io.Writer, t core.Table) error {
	if t == nil {
		t = core.Table{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return nil
}

// ReadCSV decodes a CSV file with a header row. See FromRows for how headers
// and cells are interpreted.
func ReadCSV(r io.Reader) (core.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return core.Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	dec := newRowDecoder(header)

	t := core.Table{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		tx, err := dec.decode(rec)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		t = append(t, tx)
	}
	return t, nil
}

// FromRows builds a table from a header and text rows. Headers naming known
// columns are read ("category" is accepted for category_path); other headers
// are ignored. Empty cells of optional raw columns leave the column absent and
// rows with no cells at all are skipped.
func FromRows(header []string, rows [][]string) (core.Table, error) {
	dec := newRowDecoder(header)
	t := make(core.Table, 0, len(rows))
	for i, rec := range rows {
		if blank(rec) {
			continue
		}
		tx, err := dec.decode(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		t = append(t, tx)
	}
	return t, nil
}

type rowDecoder struct {
	cols []core.Column
}

func newRowDecoder(header []string) rowDecoder {
	cols := make([]core.Column, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "category" {
			h = string(core.ColumnCategoryPath)
		}
		if c, ok := core.ParseColumn(h); ok {
			cols[i] = c
		}
	}
	return rowDecoder{cols: cols}
}

func (d rowDecoder) decode(rec []string) (core.Transaction, error) {
	var (
		tx  core.Transaction
		err error
	)
	for i, cell := range rec {
		if i >= len(d.cols) || d.cols[i] == "" {
			continue
		}
		if cell == "" && optional(d.cols[i]) {
			continue
		}
		tx, err = tx.SetText(d.cols[i], cell)
		if err != nil {
			return tx, err
		}
	}
	return tx, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func optional(c core.Column) bool {
	switch c {
	case core.ColumnMerchantName, core.ColumnPaymentChannel, core.ColumnAccountID:
		return true
	}
	return false
}

// WriteCSV writes the union of present columns as header, in canonical order.
func WriteCSV(w io.Writer, t core.Table) error {
	cols := t.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(cols)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range Rows(t, cols) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Header renders column names.
func Header(cols []core.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = string(c)
	}
	return out
}

// Rows renders every record as text cells for cols; absent columns are empty.
func Rows(t core.Table, cols []core.Column) [][]string {
	out := make([][]string, len(t))
	for i, tx := range t {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j], _ = tx.Value(c)
		}
		out[i] = row
	}
	return out
}
