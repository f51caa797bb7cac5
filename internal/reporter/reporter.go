package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"caption-worker-service/internal/entity"
)

type statusPayload struct {
	ExternalRefID string `json:"external_reference_id"`
	Status        int    `json:"status"`
}

type descriptionPayload struct {
	ExternalRefID string `json:"external_reference_id"`
	Description   string `json:"description"`
}

// envelope matches what the consumer's receiver endpoints expect.
type envelope struct {
	Data any `json:"data"`
}

// Sender delivers status transitions and final descriptions to the consuming
// application over HTTP. Delivery is at-least-once: transport failures and 5xx
// responses are retried a bounded number of times, and every attempt for one
// callback carries the same X-Delivery-ID so the consumer can deduplicate.
type Sender struct {
	client      *http.Client
	baseURL     string
	maxAttempts int
	retryDelay  time.Duration
}

func NewSender(baseURL string) *Sender {
	return &Sender{
		client:      &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		maxAttempts: 3,
		retryDelay:  500 * time.Millisecond,
	}
}

// NewSenderWithRetry allows tests to shrink the retry schedule.
func NewSenderWithRetry(baseURL string, maxAttempts int, retryDelay time.Duration) *Sender {
	s := NewSender(baseURL)
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	s.retryDelay = retryDelay
	return s
}

func (s *Sender) SendStatus(ctx context.Context, externalRefID string, status entity.Status) error {
	err := s.post(ctx, "status_receiver", statusPayload{
		ExternalRefID: externalRefID,
		Status:        int(status),
	})
	if err != nil {
		log.Error().Err(err).Str("external_reference_id", externalRefID).Stringer("status", status).
			Msg("status callback delivery failed")
		return err
	}
	log.Info().Str("external_reference_id", externalRefID).Stringer("status", status).
		Msg("status callback delivered")
	return nil
}

func (s *Sender) SendDescription(ctx context.Context, externalRefID, description string) error {
	err := s.post(ctx, "description_receiver", descriptionPayload{
		ExternalRefID: externalRefID,
		Description:   description,
	})
	if err != nil {
		log.Error().Err(err).Str("external_reference_id", externalRefID).
			Msg("description callback delivery failed")
		return err
	}
	log.Info().Str("external_reference_id", externalRefID).Msg("description callback delivered")
	return nil
}

func (s *Sender) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(envelope{Data: payload})
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	deliveryID := uuid.NewString()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			// linear-ish backoff: delay, 2*delay, ...
			wait := time.Duration(attempt-1) * s.retryDelay
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = s.postOnce(ctx, path, deliveryID, body)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("callback to %s failed after %d attempts: %w", path, s.maxAttempts, lastErr)
}

func (s *Sender) postOnce(ctx context.Context, path, deliveryID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", deliveryID)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("consumer responded with status %d", resp.StatusCode)
	}
	return nil
}
