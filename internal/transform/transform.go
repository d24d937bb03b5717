// Package transform holds the named column-derivation steps of the pipeline.
//
// Steps always execute in the dependency order given by Order, whatever order
// the configuration lists them in. important_cols is last because it drops
// columns the other steps read.
package transform

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"budgetpipe/internal/core"
)

// Step is the configuration name of a transformation.
type Step string

const (
	RemoveTransfers Step = "remove_transfers"
	AddMonth        Step = "add_month"
	AddCat1         Step = "add_cat_1"
	AddCat2         Step = "add_cat_2"
	ImportantCols   Step = "important_cols"
)

// Order is the fixed execution order of every recognized step.
var Order = []Step{
	RemoveTransfers,
	AddMonth,
	AddCat1,
	AddCat2,
	ImportantCols,
}

// ImportantColumns is the allow-list kept by important_cols.
var ImportantColumns = []core.Column{
	core.ColumnDate,
	core.ColumnMonth,
	core.ColumnName,
	core.ColumnMerchantName,
	core.ColumnCategory1,
	core.ColumnCategory2,
	core.ColumnPaymentChannel,
	core.ColumnAmount,
}

// Lookup returns the step with the given configuration name.
func Lookup(name string) (Step, bool) {
	s := Step(name)
	if slices.Contains(Order, s) {
		return s, true
	}
	return "", false
}

// Plan returns the requested steps deduplicated and sorted into Order.
// Unrecognized names are dropped; configuration loading rejects them earlier.
func Plan(requested []Step) []Step {
	out := make([]Step, 0, len(requested))
	for _, s := range Order {
		if slices.Contains(requested, s) {
			out = append(out, s)
		}
	}
	return out
}

// Func derives a new table from t. It must not modify t.
type Func func(t core.Table) (core.Table, error)

// Registry maps step names to their implementation.
type Registry struct {
	steps map[Step]Func
}

// NewRegistry returns a registry holding every step in Order.
func NewRegistry() *Registry {
	return &Registry{steps: map[Step]Func{
		RemoveTransfers: removeTransfers,
		AddMonth:        addMonth,
		AddCat1:         addCategory(0),
		AddCat2:         addCategory(1),
		ImportantCols:   importantCols,
	}}
}

var defaultRegistry = NewRegistry()

var ErrUnknownStep = errors.New("unknown transformation step")

// Apply runs the requested steps in dependency order and returns a new table.
func (r *Registry) Apply(t core.Table, requested []Step) (core.Table, error) {
	for _, s := range requested {
		if _, ok := r.steps[s]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStep, s)
		}
	}

	out := t.Clone()
	for _, s := range Plan(requested) {
		next, err := r.steps[s](out)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// Apply runs the requested steps with the built-in registry.
func Apply(t core.Table, requested []Step) (core.Table, error) {
	return defaultRegistry.Apply(t, requested)
}

func removeTransfers(t core.Table) (core.Table, error) {
	out := make(core.Table, 0, len(t))
	for _, tx := range t {
		name, err := tx.Name()
		if err != nil || strings.TrimSpace(name) == "" {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func addMonth(t core.Table) (core.Table, error) {
	out := make(core.Table, len(t))
	for i, tx := range t {
		date, err := tx.Date()
		if err != nil {
			var missing *core.MissingFieldError
			if errors.As(err, &missing) {
				return nil, missing.At(string(AddMonth), i)
			}
			return nil, err
		}
		month, err := core.MonthOf(date)
		if err != nil {
			return nil, &core.InvalidDateError{Value: date, Step: string(AddMonth), Index: i, Err: err}
		}
		out[i] = tx.WithMonth(month)
	}
	return out, nil
}

// addCategory derives category_1 (pos 0) or category_2 (pos 1) from the
// category path. A record whose path column was projected away keeps any
// value it already carries, which makes re-running the pipeline a no-op.
func addCategory(pos int) Func {
	column := core.ColumnCategory1
	if pos == 1 {
		column = core.ColumnCategory2
	}
	set := func(tx core.Transaction, v string) core.Transaction {
		if column == core.ColumnCategory1 {
			return tx.WithCategory1(v)
		}
		return tx.WithCategory2(v)
	}

	return func(t core.Table) (core.Table, error) {
		out := make(core.Table, len(t))
		for i, tx := range t {
			path, err := tx.CategoryPath()
			switch {
			case err != nil && tx.Has(column):
				out[i] = tx
			case len(path) > pos:
				out[i] = set(tx, path[pos])
			default:
				out[i] = set(tx, "")
			}
		}
		return out, nil
	}
}

func importantCols(t core.Table) (core.Table, error) {
	out := make(core.Table, len(t))
	for i, tx := range t {
		out[i] = tx.Only(ImportantColumns...)
	}
	return out, nil
}
