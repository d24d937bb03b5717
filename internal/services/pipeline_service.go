// Package services ties the pipeline engine to the run store and the event
// publisher.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"budgetpipe/internal/amqp"
	"budgetpipe/internal/core"
	"budgetpipe/internal/log"
	"budgetpipe/internal/pipeline"
	"budgetpipe/internal/rules"
	"budgetpipe/internal/storage"
)

type RunStore interface {
	SaveRun(ctx context.Context, run storage.Run, rows core.Table) error
	GetRun(ctx context.Context, id string) (storage.Run, error)
	ListRuns(ctx context.Context, limit int) ([]storage.Run, error)
	RunRows(ctx context.Context, id string) (core.Table, error)
}

type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, msg *amqp.RunCompletedMessage) error
}

// RunOutcome is a stored run together with its output table.
type RunOutcome struct {
	Run   storage.Run `json:"run"`
	Table core.Table  `json:"transactions"`
}

// PipelineService runs the engine, stores the result and announces it.
type PipelineService struct {
	store     RunStore
	publisher RunPublisher
	now       func() time.Time
	newID     func() string
}

// NewPipelineService wires the service. publisher may be nil, in which case
// no run events are sent.
func NewPipelineService(store RunStore, publisher RunPublisher) *PipelineService {
	return &PipelineService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run applies cfg to table, stores the outcome and publishes a run-completed
// event. A publish failure is logged and does not fail the run: the run is
// already stored.
func (s *PipelineService) Run(ctx context.Context, table core.Table, cfg *rules.Config) (RunOutcome, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentPipeline)
	runID := s.newID()

	res, err := pipeline.Run(table, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Pipeline run failed", log.NewFields().
			WithRun(runID, digest(cfg)).
			WithOperation(log.OpRun).
			WithError(err).
			ToSlice()...)
		return RunOutcome{}, fmt.Errorf("run pipeline: %w", err)
	}

	steps := make([]string, len(res.Steps))
	for i, st := range res.Steps {
		steps[i] = string(st)
	}
	run := storage.Run{
		ID:          runID,
		CreatedAt:   s.now().UTC(),
		RulesDigest: cfg.Digest,
		Steps:       steps,
		Stats:       res.Stats,
	}
	if err := s.store.SaveRun(ctx, run, res.Table); err != nil {
		return RunOutcome{}, fmt.Errorf("save run: %w", err)
	}

	st := res.Stats
	logger.InfoContext(ctx, "Pipeline run completed", log.NewFields().
		WithRun(runID, cfg.Digest).
		WithRunStats(st.Input, st.RemovedByAccount, st.RemovedByTerm, st.RemovedByTransform, st.Recategorized, st.Output).
		ToSlice()...)

	s.publish(ctx, run)
	return RunOutcome{Run: run, Table: res.Table}, nil
}

func (s *PipelineService) publish(ctx context.Context, run storage.Run) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentPipeline)
	if s.publisher == nil {
		logger.DebugContext(ctx, "No publisher configured, skipping run event", log.FieldRunID, run.ID)
		return
	}
	msg := amqp.NewRunCompletedMessage(run.ID, run.RulesDigest, run.Stats.Output)
	if err := s.publisher.PublishRunCompleted(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to publish run event", log.FieldRunID, run.ID, log.FieldError, err.Error())
	}
}

// Get returns a stored run with its rows.
func (s *PipelineService) Get(ctx context.Context, id string) (RunOutcome, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return RunOutcome{}, err
	}
	rows, err := s.store.RunRows(ctx, id)
	if err != nil {
		return RunOutcome{}, err
	}
	return RunOutcome{Run: run, Table: rows}, nil
}

func (s *PipelineService) List(ctx context.Context, limit int) ([]storage.Run, error) {
	return s.store.ListRuns(ctx, limit)
}

// IsNotFound reports whether err means the requested run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrRunNotFound)
}

func digest(cfg *rules.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.Digest
}
