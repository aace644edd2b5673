// Package events buffers experiment events behind a bounded channel so
// the serving path never blocks on counter writes.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/landerd/landerd/internal/hooks"
	"github.com/landerd/landerd/internal/metrics"
	"github.com/landerd/landerd/internal/store"
)

// Event types accepted by the recorder.
const (
	TypeVisit      = "visit"
	TypePageLoad   = "page_load"
	TypeConversion = "conversion"
	TypeRevenue    = "revenue"
)

// DefaultQueueSize bounds the recorder channel when no size is configured.
const DefaultQueueSize = 1024

// Event is a single observation against an experiment variant. Value
// carries revenue for revenue events and load time in milliseconds for
// page_load events; it is ignored otherwise.
type Event struct {
	ExperimentID string  `json:"experimentId"`
	VariantID    string  `json:"variantId"`
	Type         string  `json:"eventType"`
	SessionID    string  `json:"sessionId,omitempty"`
	Value        float64 `json:"value,omitempty"`
}

// Recorder drains events onto the store from a single worker goroutine.
// Record never blocks: when the queue is full the event is dropped and
// counted, which keeps page serving insulated from a slow database.
type Recorder struct {
	store   store.Store
	hooks   hooks.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewRecorder builds a stopped recorder; call Start before recording.
// A queueSize of zero or less falls back to DefaultQueueSize.
func NewRecorder(s store.Store, h hooks.Engine, m *metrics.Metrics, logger *slog.Logger, queueSize int) *Recorder {
	if h == nil {
		h = hooks.NopEngine{}
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Recorder{
		store:   s,
		hooks:   h,
		metrics: m,
		logger:  logger,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (r *Recorder) Start() {
	go r.run()
}

// Close stops accepting events, drains what is already queued, and
// returns once the worker has exited.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.queue) })
	<-r.done
}

// Record enqueues an event without blocking. The return value reports
// whether the event was accepted.
func (r *Recorder) Record(e Event) bool {
	select {
	case r.queue <- e:
		return true
	default:
		r.metrics.EventsDropped.Inc()
		r.logger.Warn("event queue full, dropping event",
			"experimentId", e.ExperimentID,
			"variantId", e.VariantID,
			"eventType", e.Type)
		return false
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.apply(e)
	}
}

func (r *Recorder) apply(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch e.Type {
	case TypeVisit:
		err = r.store.RecordVisit(ctx, e.ExperimentID, e.VariantID)
	case TypePageLoad:
		// Latency is observational only; nothing is persisted.
		r.metrics.PageLoadSeconds.Observe(e.Value / 1000)
	case TypeConversion:
		err = r.store.RecordConversion(ctx, e.ExperimentID, e.VariantID)
	case TypeRevenue:
		err = r.store.AddRevenue(ctx, e.ExperimentID, e.VariantID, e.Value)
	default:
		r.logger.Warn("unknown event type", "eventType", e.Type)
		return
	}
	if err != nil {
		r.logger.Error("failed to record event",
			"experimentId", e.ExperimentID,
			"variantId", e.VariantID,
			"eventType", e.Type,
			"error", err)
		return
	}

	r.metrics.Events.WithLabelValues(e.Type).Inc()
	r.hooks.Event(ctx, e.Type, e)
}
