// Package sheets defines the outbound ports used to publish pipeline output
// to a spreadsheet and to read a ledger back from one.
package sheets

import (
	"context"
	"errors"

	"budgetpipe/internal/core"
)

// ErrSheetNotFound is returned by readers when the named tab does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

type (
	// TableWriter replaces the content of a tab with a header row and one row
	// per transaction. It returns a reference to the written range.
	TableWriter interface {
		WriteTable(ctx context.Context, sheet string, t core.Table) (ref string, err error)
	}

	// TableReader reads a tab written in the same layout.
	TableReader interface {
		ReadTable(ctx context.Context, sheet string) (core.Table, error)
	}

	TableStore interface {
		TableWriter
		TableReader
	}
)
