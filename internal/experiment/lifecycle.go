package experiment

import (
	"fmt"
	"math"
	"strings"

	"github.com/landerd/landerd/internal/store"
)

// ValidationError reports a rejected experiment definition, naming the
// offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionError reports an illegal lifecycle transition. It is a client
// error and is never retried.
type TransitionError struct {
	From   store.ExperimentStatus
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s experiment in status %q", e.Action, e.From)
}

// weightTolerance is the slack allowed on the variant weight sum.
const weightTolerance = 0.1

// ValidateDefinition checks the structural invariants of an experiment
// definition and normalizes it: weights must sum to 100 within tolerance,
// and when goals exist but none is primary the first is promoted.
func ValidateDefinition(e *store.Experiment) error {
	if strings.TrimSpace(e.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(e.Variants) == 0 {
		return &ValidationError{Field: "variants", Reason: "at least one variant required"}
	}

	total := 0.0
	for i, v := range e.Variants {
		if v.LandingPageID == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("variants[%d].landingPageId", i),
				Reason: "must not be empty",
			}
		}
		if v.Weight < 0 || v.Weight > 100 {
			return &ValidationError{
				Field:  fmt.Sprintf("variants[%d].weight", i),
				Reason: "must be between 0 and 100",
			}
		}
		total += v.Weight
	}
	if math.Abs(total-100) > weightTolerance {
		return &ValidationError{
			Field:  "variants.weight",
			Reason: fmt.Sprintf("weights must sum to 100, got %.2f", total),
		}
	}

	for i, g := range e.Goals {
		if g.Target == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("goals[%d].target", i),
				Reason: "must not be empty",
			}
		}
	}

	// Auto-promote the first goal when none is flagged primary.
	hasPrimary := false
	for _, g := range e.Goals {
		if g.IsPrimary {
			hasPrimary = true
			break
		}
	}
	if !hasPrimary && len(e.Goals) > 0 {
		e.Goals[0].IsPrimary = true
	}

	return nil
}

// CanStart reports whether an experiment may transition to running.
// Legal only from draft or paused.
func CanStart(status store.ExperimentStatus) bool {
	return status == store.StatusDraft || status == store.StatusPaused
}

// CanPause reports whether an experiment may transition to paused.
// Legal only from running.
func CanPause(status store.ExperimentStatus) bool {
	return status == store.StatusRunning
}

// CanStop reports whether an experiment may transition to completed.
// Legal from running or paused; draft experiments cannot jump straight
// to completed, and completed is terminal.
func CanStop(status store.ExperimentStatus) bool {
	return status == store.StatusRunning || status == store.StatusPaused
}
