package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"caption-worker-service/internal/captioner"
	"caption-worker-service/internal/entity"
)

// Store port: claim is fetch+delete in one atomic step, so a claimed job can
// never be handed to anyone else and is never retried automatically.
type JobStore interface {
	ClaimOldest(ctx context.Context) (*entity.Job, error)
}

// Reporter port (implementation: reporter.Sender)
type Reporter interface {
	SendStatus(ctx context.Context, externalRefID string, status entity.Status) error
	SendDescription(ctx context.Context, externalRefID, description string) error
}

// Worker is the single long-lived loop driving jobs through their lifecycle.
// One worker system-wide means at most one job is in processing at any time;
// inference backends contend for the same GPU anyway, so sequential throughput
// is the intended trade.
type Worker struct {
	store          JobStore
	registry       *captioner.Registry
	reporter       Reporter
	pollInterval   time.Duration
	extractTimeout time.Duration
}

type Option func(*Worker)

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithExtractTimeout bounds a single backend call. Zero disables the bound.
func WithExtractTimeout(d time.Duration) Option {
	return func(w *Worker) { w.extractTimeout = d }
}

func New(store JobStore, registry *captioner.Registry, reporter Reporter, opts ...Option) *Worker {
	w := &Worker{
		store:          store,
		registry:       registry,
		reporter:       reporter,
		pollInterval:   5 * time.Second,
		extractTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run loops until ctx is cancelled. Nothing a single job does can terminate
// the loop: backend errors, callback failures and even panics are absorbed
// per iteration.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("poll_interval", w.pollInterval).Msg("caption worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("caption worker stopped")
			return
		default:
		}

		job, err := w.store.ClaimOldest(ctx)
		if err != nil {
			if errors.Is(err, entity.ErrNoJob) {
				w.sleep(ctx, w.pollInterval)
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Msg("claim job failed, backing off")
			w.sleep(ctx, w.pollInterval)
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *entity.Job) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Int64("job_id", job.ID).Any("panic", r).Msg("backend panicked")
			w.fail(ctx, job, fmt.Errorf("backend panicked: %v", r))
		}
	}()

	log.Info().Int64("job_id", job.ID).
		Str("external_reference_id", job.ExternalRefID).
		Str("backend", job.Backend).
		Str("resource", job.ResourceLocator).
		Msg("processing job")

	if err := w.reporter.SendStatus(ctx, job.ExternalRefID, entity.StatusProcessing); err != nil {
		log.Warn().Err(err).Int64("job_id", job.ID).Msg("processing notification failed")
	}

	backend, err := w.registry.Resolve(job.Backend)
	if err != nil {
		w.fail(ctx, job, err)
		return
	}

	extractCtx := ctx
	if w.extractTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, w.extractTimeout)
		defer cancel()
	}

	description, err := backend.Extract(extractCtx, job.ResourceLocator)
	if err != nil {
		w.fail(ctx, job, err)
		return
	}

	if err := w.reporter.SendDescription(ctx, job.ExternalRefID, description); err != nil {
		w.fail(ctx, job, err)
		return
	}
	if err := w.reporter.SendStatus(ctx, job.ExternalRefID, entity.StatusDone); err != nil {
		log.Warn().Err(err).Int64("job_id", job.ID).Msg("done notification failed")
	}

	log.Info().Int64("job_id", job.ID).
		Str("external_reference_id", job.ExternalRefID).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("job done")
}

// fail marks the job's terminal failed state. The job was already removed
// from the store when claimed, so there is nothing else to clean up.
func (w *Worker) fail(ctx context.Context, job *entity.Job, cause error) {
	log.Error().Err(cause).Int64("job_id", job.ID).
		Str("external_reference_id", job.ExternalRefID).
		Str("backend", job.Backend).
		Msg("job failed")

	if err := w.reporter.SendStatus(ctx, job.ExternalRefID, entity.StatusFailed); err != nil {
		log.Warn().Err(err).Int64("job_id", job.ID).Msg("failed notification not delivered")
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
