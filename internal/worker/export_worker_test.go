package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpipe/internal/amqp"
	"budgetpipe/internal/core"
	"budgetpipe/internal/pipeline"
	"budgetpipe/internal/sheets/memory"
	"budgetpipe/internal/storage"
)

func seededRepo(t *testing.T) (*storage.SQLiteRepository, core.Table) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	rows := core.Table{
		core.Transaction{}.WithDate("2024-03-05").WithMonth("2024-03").WithName("Whole Foods Market").
			WithCategory1("Food").WithCategory2("Groceries").WithAmount(core.MustAmount("54.32")),
	}
	run := storage.Run{ID: "r1", CreatedAt: time.Now(), RulesDigest: "d", Stats: pipeline.Stats{Input: 1, Output: 1}}
	require.NoError(t, repo.SaveRun(context.Background(), run, rows))
	return repo, rows
}

func TestHandleRunCompletedExports(t *testing.T) {
	ctx := context.Background()
	repo, rows := seededRepo(t)
	store := memory.New()
	w := NewExportWorker(repo, store, "Budget")

	require.NoError(t, w.HandleRunCompleted(ctx, amqp.NewRunCompletedMessage("r1", "d", 1)))

	got, err := store.ReadTable(ctx, "Budget")
	require.NoError(t, err)
	assert.True(t, rows.Equal(got))

	run, err := repo.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "mem:Budget!2", run.ExportRef)
	require.NotNil(t, run.ExportedAt)

	// Redelivery does not write again.
	require.NoError(t, w.HandleRunCompleted(ctx, amqp.NewRunCompletedMessage("r1", "d", 1)))
	assert.Equal(t, 1, store.Writes())
}

func TestHandleRunCompletedUnknownRun(t *testing.T) {
	repo, _ := seededRepo(t)
	w := NewExportWorker(repo, memory.New(), "Budget")
	err := w.HandleRunCompleted(context.Background(), amqp.NewRunCompletedMessage("ghost", "", 0))
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

type failingWriter struct{}

func (failingWriter) WriteTable(context.Context, string, core.Table) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestHandleRunCompletedWriteFailureLeavesRunPending(t *testing.T) {
	ctx := context.Background()
	repo, _ := seededRepo(t)
	w := NewExportWorker(repo, failingWriter{}, "Budget")

	err := w.HandleRunCompleted(ctx, amqp.NewRunCompletedMessage("r1", "d", 1))
	assert.ErrorContains(t, err, "quota exceeded")

	run, err := repo.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, run.ExportedAt)
}

func TestInlinePublisher(t *testing.T) {
	repo, _ := seededRepo(t)
	store := memory.New()
	in := Inline{Worker: NewExportWorker(repo, store, "Budget")}

	require.NoError(t, in.PublishRunCompleted(context.Background(), amqp.NewRunCompletedMessage("r1", "d", 1)))
	assert.Equal(t, 1, store.Writes())
}
