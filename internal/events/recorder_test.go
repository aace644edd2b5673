package events_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/landerd/landerd/internal/events"
	"github.com/landerd/landerd/internal/hooks"
	"github.com/landerd/landerd/internal/metrics"
	"github.com/landerd/landerd/internal/store"
)

func setupStore(t *testing.T) (*store.SQLiteStore, *store.Experiment) {
	t.Helper()

	s, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	e := &store.Experiment{
		ID:     uuid.NewString(),
		Name:   "hero",
		Status: store.StatusRunning,
		Variants: []store.Variant{
			{ID: uuid.NewString(), Name: "a", Weight: 50, IsControl: true},
			{ID: uuid.NewString(), Name: "b", Weight: 50},
		},
		Config: store.DefaultConfig(),
	}
	if err := s.CreateExperiment(ctx, e); err != nil {
		t.Fatalf("failed to create experiment: %v", err)
	}
	ids := []string{e.Variants[0].ID, e.Variants[1].ID}
	if err := s.ResetVariantStats(ctx, e.ID, ids); err != nil {
		t.Fatalf("failed to reset stats: %v", err)
	}
	return s, e
}

func newRecorder(t *testing.T, s store.Store, h hooks.Engine, queueSize int) *events.Recorder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return events.NewRecorder(s, h, metrics.New(), logger, queueSize)
}

type countingHooks struct {
	hooks.NopEngine
	events atomic.Int64
}

func (c *countingHooks) Event(ctx context.Context, eventType string, payload any) {
	c.events.Add(1)
}

func TestRecorder_AppliesCounters(t *testing.T) {
	s, e := setupStore(t)
	h := &countingHooks{}
	r := newRecorder(t, s, h, 64)
	r.Start()

	a, b := e.Variants[0].ID, e.Variants[1].ID
	for i := 0; i < 10; i++ {
		if ok := r.Record(events.Event{ExperimentID: e.ID, VariantID: a, Type: events.TypeVisit}); !ok {
			t.Fatal("record rejected with room in the queue")
		}
	}
	for i := 0; i < 4; i++ {
		r.Record(events.Event{ExperimentID: e.ID, VariantID: b, Type: events.TypeVisit})
	}
	r.Record(events.Event{ExperimentID: e.ID, VariantID: a, Type: events.TypeConversion})
	r.Record(events.Event{ExperimentID: e.ID, VariantID: a, Type: events.TypeRevenue, Value: 19.99})
	r.Record(events.Event{ExperimentID: e.ID, VariantID: a, Type: events.TypePageLoad, Value: 340})
	r.Close()

	rows, err := s.GetVariantStats(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	byVariant := map[string]store.VariantStats{}
	for _, row := range rows {
		byVariant[row.VariantID] = row
	}

	if got := byVariant[a]; got.Visitors != 10 || got.Conversions != 1 {
		t.Errorf("variant a counters = %d/%d, want 10/1", got.Visitors, got.Conversions)
	}
	if got := byVariant[a]; got.ConversionRate != 0.1 {
		t.Errorf("variant a conversion rate = %f, want 0.1", got.ConversionRate)
	}
	if got := byVariant[a]; got.Revenue != 19.99 {
		t.Errorf("variant a revenue = %f, want 19.99", got.Revenue)
	}
	if got := byVariant[b]; got.Visitors != 4 {
		t.Errorf("variant b visitors = %d, want 4", got.Visitors)
	}

	exp, err := s.GetExperiment(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("failed to read experiment: %v", err)
	}
	if exp.TotalVisitors != 14 {
		t.Errorf("total visitors = %d, want 14", exp.TotalVisitors)
	}

	// page_load does not hit the store but still fires a hook; 17 events
	// queued, all of them applied.
	if got := h.events.Load(); got != 17 {
		t.Errorf("hook events = %d, want 17", got)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	s, e := setupStore(t)
	r := newRecorder(t, s, nil, 2)

	// Worker not started: the queue fills and stays full.
	accepted := 0
	for i := 0; i < 5; i++ {
		if r.Record(events.Event{ExperimentID: e.ID, VariantID: e.Variants[0].ID, Type: events.TypeVisit}) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("accepted %d events into a queue of 2", accepted)
	}

	// Draining still applies the accepted events.
	r.Start()
	r.Close()

	rows, err := s.GetVariantStats(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	for _, row := range rows {
		if row.VariantID == e.Variants[0].ID && row.Visitors != 2 {
			t.Errorf("visitors = %d, want 2", row.Visitors)
		}
	}
}

func TestRecorder_UnknownTypeIgnored(t *testing.T) {
	s, e := setupStore(t)
	h := &countingHooks{}
	r := newRecorder(t, s, h, 8)
	r.Start()

	r.Record(events.Event{ExperimentID: e.ID, VariantID: e.Variants[0].ID, Type: "purchase_intent"})
	r.Close()

	if got := h.events.Load(); got != 0 {
		t.Errorf("unknown event type fired %d hooks", got)
	}
}
