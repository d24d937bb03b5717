// Package storage persists finished pipeline runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"budgetpipe/internal/core"
	"budgetpipe/internal/log"
	"budgetpipe/internal/pipeline"
)

var ErrRunNotFound = errors.New("run not found")

// Run is the stored summary of one pipeline execution.
type Run struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	RulesDigest string         `json:"rules_digest"`
	Steps       []string       `json:"steps"`
	Stats       pipeline.Stats `json:"stats"`
	ExportRef   string         `json:"export_ref,omitempty"`
	ExportedAt  *time.Time     `json:"exported_at,omitempty"`
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveRun stores the run summary and its output rows in one transaction.
func (r *SQLiteRepository) SaveRun(ctx context.Context, run Run, rows core.Table) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.InsertRun(ctx, toRow(run)); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	for i, t := range rows {
		rec, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if err := q.InsertRunRow(ctx, run.ID, int64(i), string(rec)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentStorage).DebugContext(ctx, "Run saved to SQLite",
		log.FieldRunID, run.ID,
		log.FieldOutputRows, len(rows))
	return nil
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (Run, error) {
	row, err := r.queries.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return fromRow(row)
}

// ListRuns returns the most recent runs first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.queries.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]Run, 0, len(rows))
	for _, row := range rows {
		run, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// RunRows returns the output table of a run in its original order.
func (r *SQLiteRepository) RunRows(ctx context.Context, id string) (core.Table, error) {
	if _, err := r.GetRun(ctx, id); err != nil {
		return nil, err
	}
	recs, err := r.queries.ListRunRows(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list rows of %s: %w", id, err)
	}
	t := make(core.Table, len(recs))
	for i, rec := range recs {
		if err := json.Unmarshal([]byte(rec), &t[i]); err != nil {
			return nil, fmt.Errorf("decode row %d of %s: %w", i, id, err)
		}
	}
	return t, nil
}

// MarkExported records where a run was exported to.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id, ref string, at time.Time) error {
	n, err := r.queries.MarkRunExported(ctx, id, ref, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("mark run %s exported: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func toRow(run Run) PipelineRun {
	return PipelineRun{
		ID:               run.ID,
		CreatedAt:        run.CreatedAt.UTC().Format(time.RFC3339Nano),
		RulesDigest:      run.RulesDigest,
		Steps:            strings.Join(run.Steps, ","),
		InputRows:        int64(run.Stats.Input),
		RemovedByAccount: int64(run.Stats.RemovedByAccount),
		RemovedByTerm:    int64(run.Stats.RemovedByTerm),
		RemovedByStep:    int64(run.Stats.RemovedByTransform),
		Recategorized:    int64(run.Stats.Recategorized),
		OutputRows:       int64(run.Stats.Output),
	}
}

func fromRow(row PipelineRun) (Run, error) {
	created, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad created_at: %w", row.ID, err)
	}
	run := Run{
		ID:          row.ID,
		CreatedAt:   created,
		RulesDigest: row.RulesDigest,
		Steps:       []string{},
		Stats: pipeline.Stats{
			Input:              int(row.InputRows),
			RemovedByAccount:   int(row.RemovedByAccount),
			RemovedByTerm:      int(row.RemovedByTerm),
			RemovedByTransform: int(row.RemovedByStep),
			Recategorized:      int(row.Recategorized),
			Output:             int(row.OutputRows),
		},
		ExportRef: row.ExportRef,
	}
	if row.Steps != "" {
		run.Steps = strings.Split(row.Steps, ",")
	}
	if row.ExportedAt.Valid {
		at, err := time.Parse(time.RFC3339Nano, row.ExportedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: bad exported_at: %w", row.ID, err)
		}
		run.ExportedAt = &at
	}
	return run, nil
}
