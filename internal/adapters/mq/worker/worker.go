// Package worker runs the single recompute loop fed by the submission queue.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/mccskill/internal/adapters/mq/queue"
	"github.com/okian/mccskill/internal/domain/model"
	"github.com/okian/mccskill/pkg/logger"
	"github.com/okian/mccskill/pkg/metrics"
)

const defaultMaxBatch = 256

// Applier folds submissions into the roster and re-estimates skills.
type Applier interface {
	Apply(ctx context.Context, s model.Submission) error
	Recompute(ctx context.Context) (model.Run, error)
}

// Queue defines how the worker receives submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Submission
	TryDequeue(ctx context.Context) (queue.Submission, bool)
}

// Recomputer applies queued submissions in batches and triggers one
// estimation per batch. Only one Recomputer should run per roster.
type Recomputer struct {
	queue    Queue
	applier  Applier
	name     string
	maxBatch int

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewRecomputer creates a worker with configuration options.
func NewRecomputer(q Queue, applier Applier, opts ...Option) *Recomputer {
	w := &Recomputer{
		queue:    q,
		applier:  applier,
		name:     "recomputer",
		maxBatch: defaultMaxBatch,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "recomputer" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run blocks until ctx is cancelled, Shutdown is called or the queue closes.
func (w *Recomputer) Run(ctx context.Context) {
	defer close(w.done)

	ch := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx)
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			w.processBatch(ctx, s)
		}
	}
}

// drain processes every submission still pending so nothing that was
// acknowledged is lost on shutdown.
func (w *Recomputer) drain(ctx context.Context) {
	for {
		s, ok := w.queue.TryDequeue(ctx)
		if !ok {
			return
		}
		w.processBatch(ctx, s)
	}
}

// Shutdown stops the loop once pending submissions are processed and waits
// for it to return.
func (w *Recomputer) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processBatch applies first plus whatever else is already queued, then
// recomputes once. It returns the number of submissions applied.
func (w *Recomputer) processBatch(ctx context.Context, first queue.Submission) int {
	start := time.Now()
	batch := []queue.Submission{first}
	for len(batch) < w.maxBatch {
		s, ok := w.queue.TryDequeue(ctx)
		if !ok {
			break
		}
		batch = append(batch, s)
	}
	metrics.RecordRecomputeBatch(len(batch))

	applied := 0
	for _, s := range batch {
		if err := w.applier.Apply(ctx, s); err != nil {
			_ = metrics.RecordSubmission(metrics.SubmissionRejected)
			metrics.RecordErrorByComponent("worker", "apply_error")
			w.logger.Error(ctx, "submission rejected",
				logger.String("submissionID", s.SubmissionID),
				logger.String("playerID", s.PlayerID),
				logger.Error(err),
			)
			continue
		}
		_ = metrics.RecordSubmission(metrics.SubmissionApplied)
		applied++
	}

	if applied == 0 {
		return 0
	}

	run, err := w.applier.Recompute(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("worker", "recompute_error")
		w.logger.Error(ctx, "recompute failed", logger.Error(err))
		return applied
	}
	w.logger.Debug(ctx, "batch recomputed",
		logger.Int("batch", len(batch)),
		logger.Int("applied", applied),
		logger.String("runID", run.ID.String()),
		logger.Int("passes", run.Passes),
		logger.Duration("elapsed", time.Since(start)),
	)
	return applied
}
