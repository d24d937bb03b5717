package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpipe/internal/amqp"
	"budgetpipe/internal/core"
	"budgetpipe/internal/log"
	"budgetpipe/internal/rules"
	"budgetpipe/internal/storage"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.RunCompletedMessage
	err  error
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, msg *amqp.RunCompletedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

const rulesJSON = `{
	"transformations": ["add_month", "add_cat_1", "add_cat_2", "important_cols"],
	"remove_transactions": ["AutoPay"],
	"custom_category_map": {"Rent": ["Landlord"]}
}`

func newService(t *testing.T, pub RunPublisher) (*PipelineService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc := NewPipelineService(repo, pub)
	svc.now = func() time.Time { return time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC) }
	ids := 0
	svc.newID = func() string {
		ids++
		return fmt.Sprintf("run-%d", ids)
	}
	return svc, repo
}

func ledger() core.Table {
	return core.Table{
		core.NewTransaction("2024-03-01", "Landlord Payment", core.MustAmount("500.00"), []string{"Transfer", "Debit"}),
		core.NewTransaction("2024-03-02", "AutoPay - Credit Card", core.MustAmount("120"), []string{"Payment"}),
		core.NewTransaction("2024-03-05", "Whole Foods Market", core.MustAmount("54.32"), []string{"Food and Drink", "Groceries"}),
	}
}

func TestRunStoresAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	svc, repo := newService(t, pub)
	cfg, err := rules.Parse([]byte(rulesJSON), rules.FormatJSON)
	require.NoError(t, err)

	var buf bytes.Buffer
	ctx := log.NewContext(context.Background(), log.New(log.Config{Output: &buf}))

	out, err := svc.Run(ctx, ledger(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "run-1", out.Run.ID)
	assert.Equal(t, cfg.Digest, out.Run.RulesDigest)
	assert.Equal(t, []string{"add_month", "add_cat_1", "add_cat_2", "important_cols"}, out.Run.Steps)
	assert.Equal(t, 1, out.Run.Stats.RemovedByTerm)
	assert.Equal(t, 1, out.Run.Stats.Recategorized)
	require.Len(t, out.Table, 2)

	stored, err := svc.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, out.Table.Equal(stored.Table))

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "run-1", pub.msgs[0].RunID)
	assert.Equal(t, 2, pub.msgs[0].OutputRows)

	assert.Contains(t, buf.String(), "Pipeline run completed")
	assert.Contains(t, buf.String(), "recategorized=1")
}

func TestRunSurvivesPublishFailure(t *testing.T) {
	svc, _ := newService(t, &recordingPublisher{err: errors.New("broker down")})
	cfg, err := rules.Parse([]byte(rulesJSON), rules.FormatJSON)
	require.NoError(t, err)

	out, err := svc.Run(context.Background(), ledger(), cfg)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), out.Run.ID)
	assert.NoError(t, err)
}

func TestRunWithoutPublisher(t *testing.T) {
	svc, _ := newService(t, nil)
	cfg, err := rules.Parse([]byte(`{}`), rules.FormatJSON)
	require.NoError(t, err)

	out, err := svc.Run(context.Background(), ledger(), cfg)
	require.NoError(t, err)
	assert.Len(t, out.Table, 3)
	assert.Empty(t, out.Run.Steps)
}

func TestRunFailureIsNotStored(t *testing.T) {
	pub := &recordingPublisher{}
	svc, repo := newService(t, pub)
	cfg, err := rules.Parse([]byte(`{"transformations": ["add_month"]}`), rules.FormatJSON)
	require.NoError(t, err)

	bad := core.Table{core.NewTransaction("yesterday", "x", core.MustAmount("1"), nil)}
	_, err = svc.Run(context.Background(), bad, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidDate)

	runs, err := repo.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Empty(t, pub.msgs)
}

func TestGetUnknownRun(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Get(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}
