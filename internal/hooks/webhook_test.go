package hooks_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/landerd/landerd/internal/hooks"
)

func newEngine(url string) *hooks.WebhookEngine {
	e := hooks.NewWebhookEngine(url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.Backoff = time.Millisecond
	return e
}

func TestWebhookEngine_DeliversPayload(t *testing.T) {
	var got struct {
		Kind         string `json:"kind"`
		ExperimentID string `json:"experimentId"`
	}
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		close(done)
	}))
	defer srv.Close()

	newEngine(srv.URL).ExperimentCompleted(context.Background(), "exp-1", map[string]any{"significant": true})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never delivered")
	}
	if got.Kind != "experiment_completed" || got.ExperimentID != "exp-1" {
		t.Errorf("payload = %+v", got)
	}
}

func TestWebhookEngine_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	newEngine(srv.URL).Event(context.Background(), "conversion", nil)

	waitFor(t, func() bool { return calls.Load() == 3 })
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestWebhookEngine_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	newEngine(srv.URL).Event(context.Background(), "visit", nil)

	// Initial attempt plus three retries, then the event is dropped.
	waitFor(t, func() bool { return calls.Load() == 4 })
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 4 {
		t.Errorf("calls = %d, want 4", got)
	}
}
