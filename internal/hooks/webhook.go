package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WebhookEngine POSTs hook payloads to an external automation endpoint.
// Outbound calls are bounded: a per-request timeout plus a small number
// of retries with doubling backoff. Failures are logged and dropped; the
// serving pipeline never waits on delivery.
type WebhookEngine struct {
	URL     string
	Client  *http.Client
	Logger  *slog.Logger
	Retries int
	Backoff time.Duration
}

// NewWebhookEngine builds an engine with the default 15s client timeout,
// 3 retries and 1s initial backoff.
func NewWebhookEngine(url string, logger *slog.Logger) *WebhookEngine {
	return &WebhookEngine{
		URL:     url,
		Client:  &http.Client{Timeout: 15 * time.Second},
		Logger:  logger,
		Retries: 3,
		Backoff: time.Second,
	}
}

type webhookPayload struct {
	Kind         string    `json:"kind"`
	ExperimentID string    `json:"experimentId,omitempty"`
	EventType    string    `json:"eventType,omitempty"`
	Payload      any       `json:"payload"`
	Timestamp    time.Time `json:"timestamp"`
}

func (w *WebhookEngine) ExperimentCompleted(ctx context.Context, experimentID string, result any) {
	go w.deliver(webhookPayload{
		Kind:         "experiment_completed",
		ExperimentID: experimentID,
		Payload:      result,
		Timestamp:    time.Now().UTC(),
	})
}

func (w *WebhookEngine) Event(ctx context.Context, eventType string, payload any) {
	go w.deliver(webhookPayload{
		Kind:      "event",
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// deliver runs on its own goroutine with a detached context so hook
// delivery never blocks the serving path or dies with a request.
func (w *WebhookEngine) deliver(p webhookPayload) {
	body, err := json.Marshal(p)
	if err != nil {
		w.Logger.Error("failed to marshal webhook payload", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backoff := w.Backoff
	var lastErr error
	for attempt := 0; attempt <= w.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				w.Logger.Warn("webhook delivery abandoned", "kind", p.Kind, "error", ctx.Err())
				return
			}
			backoff *= 2
		}

		if lastErr = w.post(ctx, body); lastErr == nil {
			return
		}
	}
	w.Logger.Warn("webhook delivery failed", "kind", p.Kind, "url", w.URL, "error", lastErr)
}

func (w *WebhookEngine) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
