package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"caption-worker-service/internal/entity"
)

// Store port (implementations: postgresql.JobRepository, redisstore.JobStore)
type JobStore interface {
	Enqueue(ctx context.Context, job entity.Job) (int64, error)
	Remove(ctx context.Context, externalRefID string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// Notifier port for status callbacks (implementation: reporter.Sender)
type StatusNotifier interface {
	SendStatus(ctx context.Context, externalRefID string, status entity.Status) error
}

type JobService struct {
	store    JobStore
	notifier StatusNotifier
}

func NewJobService(store JobStore, notifier StatusNotifier) *JobService {
	return &JobService{store: store, notifier: notifier}
}

type AddJobRequest struct {
	ExternalRefID   string
	ResourceLocator string
	Backend         string
}

// AddJob enqueues a captioning job and reports in_queue to the consumer.
// The callback is best-effort: once the job is durably queued the add has
// succeeded, a failed notification must not undo it.
func (s *JobService) AddJob(ctx context.Context, req AddJobRequest) (int64, error) {
	if req.ExternalRefID == "" {
		return 0, errors.New("external_reference_id is required")
	}
	if req.ResourceLocator == "" {
		return 0, errors.New("resource_locator is required")
	}
	if req.Backend == "" {
		return 0, errors.New("backend_selector is required")
	}

	id, err := s.store.Enqueue(ctx, entity.Job{
		ExternalRefID:   req.ExternalRefID,
		ResourceLocator: req.ResourceLocator,
		Backend:         req.Backend,
	})
	if err != nil {
		return 0, err
	}

	if err := s.notifier.SendStatus(ctx, req.ExternalRefID, entity.StatusInQueue); err != nil {
		log.Warn().Err(err).Str("external_reference_id", req.ExternalRefID).
			Msg("in_queue notification failed, job remains queued")
	}

	return id, nil
}

// QueueLength is a snapshot of the number of pending jobs; it may be stale by
// the time the caller reads it.
func (s *JobService) QueueLength(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// RemoveJob cancels a still-pending job. Removing an unknown or already
// claimed id is an idempotent no-op: no error, no callback. Only an actual
// removal reports not_started.
func (s *JobService) RemoveJob(ctx context.Context, externalRefID string) (bool, error) {
	if externalRefID == "" {
		return false, errors.New("external_reference_id is required")
	}

	removed, err := s.store.Remove(ctx, externalRefID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	if err := s.notifier.SendStatus(ctx, externalRefID, entity.StatusNotStarted); err != nil {
		log.Warn().Err(err).Str("external_reference_id", externalRefID).
			Msg("not_started notification failed, job already removed")
	}
	return true, nil
}
