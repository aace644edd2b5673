// Package hooks defines the integration points the serving core calls
// into when notable things happen. Delivery mechanics (email, Slack,
// automation rules) live entirely outside the core; implementations of
// Engine bridge to them.
package hooks

import (
	"context"
	"log/slog"
)

// Engine receives signals from the serving core. Implementations must be
// safe for concurrent use and must never block the caller for long; the
// core invokes them from request-adjacent goroutines.
type Engine interface {
	// ExperimentCompleted fires when an experiment transitions to
	// completed. The result payload carries the final analysis.
	ExperimentCompleted(ctx context.Context, experimentID string, result any)

	// Event fires for every recorded experiment event.
	Event(ctx context.Context, eventType string, payload any)
}

// NopEngine discards all signals.
type NopEngine struct{}

func (NopEngine) ExperimentCompleted(context.Context, string, any) {}
func (NopEngine) Event(context.Context, string, any)               {}

// LogEngine writes every signal to a structured logger. It is the default
// wiring when no webhook endpoint is configured.
type LogEngine struct {
	Logger *slog.Logger
}

func (l LogEngine) ExperimentCompleted(ctx context.Context, experimentID string, result any) {
	l.Logger.InfoContext(ctx, "experiment completed", "experiment_id", experimentID, "result", result)
}

func (l LogEngine) Event(ctx context.Context, eventType string, payload any) {
	l.Logger.DebugContext(ctx, "experiment event", "type", eventType, "payload", payload)
}
