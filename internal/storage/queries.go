package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL for the run tables. It runs against either the
// database or a transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// PipelineRun mirrors a pipeline_runs row.
type PipelineRun struct {
	ID               string
	CreatedAt        string
	RulesDigest      string
	Steps            string
	InputRows        int64
	RemovedByAccount int64
	RemovedByTerm    int64
	RemovedByStep    int64
	Recategorized    int64
	OutputRows       int64
	ExportRef        string
	ExportedAt       sql.NullString
}

const runColumns = `id, created_at, rules_digest, steps, input_rows, removed_by_account,
	removed_by_term, removed_by_step, recategorized, output_rows, export_ref, exported_at`

func scanRun(row interface{ Scan(...any) error }) (PipelineRun, error) {
	var r PipelineRun
	err := row.Scan(&r.ID, &r.CreatedAt, &r.RulesDigest, &r.Steps, &r.InputRows, &r.RemovedByAccount,
		&r.RemovedByTerm, &r.RemovedByStep, &r.Recategorized, &r.OutputRows, &r.ExportRef, &r.ExportedAt)
	return r, err
}

const insertRun = `INSERT INTO pipeline_runs (
	id, created_at, rules_digest, steps, input_rows, removed_by_account,
	removed_by_term, removed_by_step, recategorized, output_rows
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertRun(ctx context.Context, r PipelineRun) error {
	_, err := q.db.ExecContext(ctx, insertRun,
		r.ID, r.CreatedAt, r.RulesDigest, r.Steps, r.InputRows, r.RemovedByAccount,
		r.RemovedByTerm, r.RemovedByStep, r.Recategorized, r.OutputRows)
	return err
}

const insertRunRow = `INSERT INTO run_rows (run_id, position, record) VALUES (?, ?, ?)`

func (q *Queries) InsertRunRow(ctx context.Context, runID string, position int64, record string) error {
	_, err := q.db.ExecContext(ctx, insertRunRow, runID, position, record)
	return err
}

const getRun = `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = ?`

func (q *Queries) GetRun(ctx context.Context, id string) (PipelineRun, error) {
	return scanRun(q.db.QueryRowContext(ctx, getRun, id))
}

const listRuns = `SELECT ` + runColumns + ` FROM pipeline_runs ORDER BY created_at DESC, id LIMIT ?`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]PipelineRun, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PipelineRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const listRunRows = `SELECT record FROM run_rows WHERE run_id = ? ORDER BY position`

func (q *Queries) ListRunRows(ctx context.Context, runID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listRunRows, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var rec string
		if err := rows.Scan(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const markRunExported = `UPDATE pipeline_runs SET export_ref = ?, exported_at = ? WHERE id = ?`

func (q *Queries) MarkRunExported(ctx context.Context, id, ref, at string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markRunExported, ref, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
