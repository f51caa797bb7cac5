package captioner

import (
	"context"
	"path/filepath"
	"time"
)

// Stub is the deterministic backend used for integration testing without
// model-loading cost. Output depends only on the file name, latency is fixed.
type Stub struct {
	latency time.Duration
}

func NewStub(latency time.Duration) *Stub {
	return &Stub{latency: latency}
}

func (s *Stub) Extract(ctx context.Context, resourceLocator string) (string, error) {
	if err := validateImage(resourceLocator); err != nil {
		return "", err
	}

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "Test description for " + filepath.Base(resourceLocator), nil
}
