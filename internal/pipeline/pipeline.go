// Package pipeline runs the configured transformation pipeline over a
// transaction table.
//
// The stages always run in this order:
//
//  1. removals: remove_account_ids, then remove_transactions
//  2. transformations, in transform.Order (important_cols last)
//  3. custom category overrides and renames
//
// Run never modifies the table it is given and keeps no state between calls,
// so independent runs may execute concurrently.
package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"budgetpipe/internal/core"
	"budgetpipe/internal/rules"
	"budgetpipe/internal/transform"
)

var ErrNilConfig = errors.New("pipeline: nil configuration")

// Stats counts what each stage did.
type Stats struct {
	Input              int `json:"input"`
	RemovedByAccount   int `json:"removed_by_account"`
	RemovedByTerm      int `json:"removed_by_term"`
	RemovedByTransform int `json:"removed_by_transform"`
	Recategorized      int `json:"recategorized"`
	Output             int `json:"output"`
}

// Result is the output of a run.
type Result struct {
	Table core.Table
	Stats Stats
	Steps []transform.Step // steps executed, in execution order
}

// Run applies cfg to raw and returns a fresh table.
func Run(raw core.Table, cfg *rules.Config) (Result, error) {
	if cfg == nil {
		return Result{}, ErrNilConfig
	}
	stats := Stats{Input: len(raw)}

	table := RemoveAccounts(raw, cfg.RemoveAccountIDs)
	stats.RemovedByAccount = len(raw) - len(table)

	before := len(table)
	table = RemoveTransactions(table, cfg)
	stats.RemovedByTerm = before - len(table)

	before = len(table)
	table, err := transform.Apply(table, cfg.Transformations)
	if err != nil {
		return Result{}, fmt.Errorf("transform: %w", err)
	}
	stats.RemovedByTransform = before - len(table)

	table, stats.Recategorized = cfg.Mapper().Apply(table)
	stats.Output = len(table)

	return Result{
		Table: table,
		Stats: stats,
		Steps: transform.Plan(cfg.Transformations),
	}, nil
}

// RemoveAccounts drops records whose account_id is listed. Records without an
// account_id are kept.
func RemoveAccounts(t core.Table, ids []string) core.Table {
	out := make(core.Table, 0, len(t))
	for _, tx := range t {
		if id, err := tx.AccountID(); err == nil && slices.Contains(ids, id) {
			continue
		}
		out = append(out, tx)
	}
	return out.Clone()
}

// RemoveTransactions drops records whose name contains any configured term.
func RemoveTransactions(t core.Table, cfg *rules.Config) core.Table {
	m := cfg.Matcher()
	out := make(core.Table, 0, len(t))
	for _, tx := range t {
		if m.Any(tx, cfg.RemoveTransactions) {
			continue
		}
		out = append(out, tx)
	}
	return out.Clone()
}
