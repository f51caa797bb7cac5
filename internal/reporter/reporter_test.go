package reporter_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"caption-worker-service/internal/entity"
	"caption-worker-service/internal/reporter"
)

type receivedPost struct {
	path       string
	deliveryID string
	body       map[string]any
}

type consumerStub struct {
	mu       sync.Mutex
	posts    []receivedPost
	failures int // respond 500 to this many requests before succeeding
}

func (c *consumerStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)

		var envelope map[string]any
		_ = json.Unmarshal(raw, &envelope)
		data, _ := envelope["data"].(map[string]any)

		c.mu.Lock()
		c.posts = append(c.posts, receivedPost{
			path:       r.URL.Path,
			deliveryID: r.Header.Get("X-Delivery-ID"),
			body:       data,
		})
		fail := c.failures > 0
		if fail {
			c.failures--
		}
		c.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func (c *consumerStub) received() []receivedPost {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]receivedPost, len(c.posts))
	copy(out, c.posts)
	return out
}

func TestSendStatus_PostsEnvelopeToStatusReceiver(t *testing.T) {
	consumer := &consumerStub{}
	srv := httptest.NewServer(consumer.handler())
	defer srv.Close()

	s := reporter.NewSender(srv.URL + "/")
	if err := s.SendStatus(context.Background(), "42", entity.StatusProcessing); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	posts := consumer.received()
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	p := posts[0]
	if p.path != "/status_receiver" {
		t.Fatalf("expected /status_receiver, got %s", p.path)
	}
	if p.deliveryID == "" {
		t.Fatal("expected X-Delivery-ID header")
	}
	if p.body["external_reference_id"] != "42" {
		t.Fatalf("expected external_reference_id=42, got %v", p.body["external_reference_id"])
	}
	// json numbers decode as float64
	if p.body["status"] != float64(entity.StatusProcessing) {
		t.Fatalf("expected status=2, got %v", p.body["status"])
	}
}

func TestSendDescription_PostsEnvelopeToDescriptionReceiver(t *testing.T) {
	consumer := &consumerStub{}
	srv := httptest.NewServer(consumer.handler())
	defer srv.Close()

	s := reporter.NewSender(srv.URL + "/")
	if err := s.SendDescription(context.Background(), "42", "a cat wearing sunglasses"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	posts := consumer.received()
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	p := posts[0]
	if p.path != "/description_receiver" {
		t.Fatalf("expected /description_receiver, got %s", p.path)
	}
	if p.body["description"] != "a cat wearing sunglasses" {
		t.Fatalf("unexpected description: %v", p.body["description"])
	}
}

func TestSend_RetriesKeepDeliveryID(t *testing.T) {
	consumer := &consumerStub{failures: 1}
	srv := httptest.NewServer(consumer.handler())
	defer srv.Close()

	s := reporter.NewSenderWithRetry(srv.URL+"/", 3, time.Millisecond)
	if err := s.SendStatus(context.Background(), "42", entity.StatusDone); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}

	posts := consumer.received()
	if len(posts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(posts))
	}
	if posts[0].deliveryID != posts[1].deliveryID {
		t.Fatalf("delivery id must be stable across retries: %q vs %q", posts[0].deliveryID, posts[1].deliveryID)
	}
}

func TestSend_ErrorAfterExhaustedRetries(t *testing.T) {
	consumer := &consumerStub{failures: 10}
	srv := httptest.NewServer(consumer.handler())
	defer srv.Close()

	s := reporter.NewSenderWithRetry(srv.URL+"/", 2, time.Millisecond)
	if err := s.SendStatus(context.Background(), "42", entity.StatusFailed); err == nil {
		t.Fatal("expected error after exhausted retries")
	}

	if got := len(consumer.received()); got != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", got)
	}
}

func TestSend_ConsumerUnreachableReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listening anymore

	s := reporter.NewSenderWithRetry(url+"/", 2, time.Millisecond)
	if err := s.SendStatus(context.Background(), "42", entity.StatusInQueue); err == nil {
		t.Fatal("expected transport error")
	}
}
