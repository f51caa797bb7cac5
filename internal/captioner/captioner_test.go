package captioner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"caption-worker-service/internal/captioner"
)

func tempImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("write temp image: %v", err)
	}
	return path
}

func TestRegistry_ResolveKnownBackend(t *testing.T) {
	reg := captioner.NewRegistry()
	stub := captioner.NewStub(0)
	reg.Register("test", stub)

	got, err := reg.Resolve("test")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != stub {
		t.Fatal("expected the registered instance back")
	}
}

func TestRegistry_ResolveUnknownBackend(t *testing.T) {
	reg := captioner.NewRegistry()

	_, err := reg.Resolve("florence")
	if !errors.Is(err, captioner.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestStub_OutputDerivedFromFileName(t *testing.T) {
	stub := captioner.NewStub(0)
	path := tempImage(t, "grumpy_cat.jpg")

	desc, err := stub.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if desc != "Test description for grumpy_cat.jpg" {
		t.Fatalf("unexpected description: %q", desc)
	}
}

func TestStub_MissingFile(t *testing.T) {
	stub := captioner.NewStub(0)

	_, err := stub.Extract(context.Background(), "/nope/missing.jpg")
	if !errors.Is(err, captioner.ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}
}

func TestStub_OversizedFile(t *testing.T) {
	path := tempImage(t, "huge.jpg")
	// sparse-extend past the 10MB cap
	if err := os.Truncate(path, 10*1024*1024+1); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	stub := captioner.NewStub(0)
	_, err := stub.Extract(context.Background(), path)
	if !errors.Is(err, captioner.ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestStub_LatencyRespectsContextCancel(t *testing.T) {
	stub := captioner.NewStub(10 * time.Second)
	path := tempImage(t, "slow.jpg")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := stub.Extract(ctx, path)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("extract did not honor context cancellation")
	}
}
