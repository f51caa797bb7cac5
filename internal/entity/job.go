package entity

import (
	"errors"
	"time"
)

// ErrNoJob is returned by a store when the queue is empty.
var ErrNoJob = errors.New("no pending job")

// Status mirrors the lifecycle codes the consuming application understands.
// The codes are part of the callback wire contract, do not renumber.
type Status int

const (
	StatusNotStarted Status = 0
	StatusInQueue    Status = 1
	StatusProcessing Status = 2
	StatusDone       Status = 3
	StatusRemoving   Status = 4 // caller-only state, never emitted here
	StatusFailed     Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusInQueue:
		return "in_queue"
	case StatusProcessing:
		return "processing"
	case StatusDone:
		return "done"
	case StatusRemoving:
		return "removing"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is one queued unit of captioning work. ID is assigned by the store at
// enqueue time and defines FIFO order. ExternalRefID correlates the job with
// the caller's own record; status lives on the caller's side and is only
// mirrored via callbacks, so the job row itself is never mutated in place.
type Job struct {
	ID              int64     `json:"job_id"`
	ExternalRefID   string    `json:"external_reference_id"`
	ResourceLocator string    `json:"resource_locator"`
	Backend         string    `json:"backend_selector"`
	CreatedAt       time.Time `json:"created_at"`
}
