// Package worker exports stored runs to a spreadsheet when they complete.
package worker

import (
	"context"
	"fmt"
	"time"

	"budgetpipe/internal/amqp"
	"budgetpipe/internal/core"
	"budgetpipe/internal/log"
	"budgetpipe/internal/sheets"
	"budgetpipe/internal/storage"
)

type RunSource interface {
	GetRun(ctx context.Context, id string) (storage.Run, error)
	RunRows(ctx context.Context, id string) (core.Table, error)
	MarkExported(ctx context.Context, id, ref string, at time.Time) error
}

// ExportWorker writes the rows of a completed run to one sheet tab.
type ExportWorker struct {
	runs   RunSource
	writer sheets.TableWriter
	sheet  string
	now    func() time.Time
}

func NewExportWorker(runs RunSource, writer sheets.TableWriter, sheet string) *ExportWorker {
	return &ExportWorker{runs: runs, writer: writer, sheet: sheet, now: time.Now}
}

// HandleRunCompleted exports the run named by msg. A run that was already
// exported is skipped, so redelivered messages are harmless.
func (w *ExportWorker) HandleRunCompleted(ctx context.Context, msg *amqp.RunCompletedMessage) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker).With(log.FieldRunID, msg.RunID)

	run, err := w.runs.GetRun(ctx, msg.RunID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run.ExportedAt != nil {
		logger.InfoContext(ctx, "Run already exported, skipping", log.FieldSheetsRange, run.ExportRef)
		return nil
	}

	rows, err := w.runs.RunRows(ctx, msg.RunID)
	if err != nil {
		return fmt.Errorf("get run rows: %w", err)
	}

	start := w.now()
	ref, err := w.writer.WriteTable(ctx, w.sheet, rows)
	if err != nil {
		return fmt.Errorf("write sheet %s: %w", w.sheet, err)
	}
	if err := w.runs.MarkExported(ctx, msg.RunID, ref, w.now().UTC()); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	logger.InfoContext(ctx, "Run exported",
		log.FieldOperation, log.OpExport,
		log.FieldSheetsRange, ref,
		log.FieldOutputRows, len(rows),
		log.FieldDuration, w.now().Sub(start).Milliseconds())
	return nil
}

// Inline adapts an ExportWorker to the publisher interface so runs are
// exported synchronously when no broker is configured.
type Inline struct {
	Worker *ExportWorker
}

func (i Inline) PublishRunCompleted(ctx context.Context, msg *amqp.RunCompletedMessage) error {
	return i.Worker.HandleRunCompleted(ctx, msg)
}
