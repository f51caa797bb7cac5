package captioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	ErrUnknownBackend = errors.New("unknown captioning backend")
	ErrImageNotFound  = errors.New("image file not found")
	ErrImageTooLarge  = errors.New("image file too large")
)

// maxImageSizeBytes caps input images at 10MB.
const maxImageSizeBytes = 10 * 1024 * 1024

// Captioner turns a resource locator (path to an image file) into a text
// description. Implementations may fail for any reason: missing resource,
// backend-internal failure, corrupt input.
type Captioner interface {
	Extract(ctx context.Context, resourceLocator string) (string, error)
}

// Registry maps backend selector strings to Captioner implementations.
// Resolution happens once per job in the worker, new backends register here
// without touching the loop itself.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Captioner
}

func NewRegistry() *Registry {
	return &Registry{backends: map[string]Captioner{}}
}

func (r *Registry) Register(name string, c Captioner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = c
}

func (r *Registry) Resolve(name string) (Captioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return c, nil
}

// Names returns the registered backend selectors.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	return names
}

// validateImage rejects inputs that can never succeed: missing files and
// files over the size cap.
func validateImage(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return fmt.Errorf("cannot read image file %s: %w", path, err)
	}
	if info.Size() > maxImageSizeBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrImageTooLarge, path, info.Size(), maxImageSizeBytes)
	}
	return nil
}
