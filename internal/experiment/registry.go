package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/landerd/landerd/internal/hooks"
	"github.com/landerd/landerd/internal/stats"
	"github.com/landerd/landerd/internal/store"
)

// Registry manages experiment definitions and their lifecycle. It is an
// explicitly constructed service: storage, hooks and clock are injected.
type Registry struct {
	store  store.Store
	hooks  hooks.Engine
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry builds a Registry. A nil hooks engine defaults to a no-op.
func NewRegistry(s store.Store, h hooks.Engine, logger *slog.Logger) *Registry {
	if h == nil {
		h = hooks.NopEngine{}
	}
	return &Registry{store: s, hooks: h, logger: logger, now: time.Now}
}

// WithClock overrides the registry clock, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create validates and persists a new draft experiment. Variant landing
// pages must exist; missing ids are reported in the validation error.
func (r *Registry) Create(ctx context.Context, e *store.Experiment) error {
	applyConfigDefaults(&e.Config)
	if err := ValidateDefinition(e); err != nil {
		return err
	}

	pageIDs := make([]string, 0, len(e.Variants))
	for _, v := range e.Variants {
		pageIDs = append(pageIDs, v.LandingPageID)
	}
	missing, err := r.store.MissingPages(ctx, pageIDs)
	if err != nil {
		return fmt.Errorf("failed to verify landing pages: %w", err)
	}
	if len(missing) > 0 {
		return &ValidationError{
			Field:  "variants.landingPageId",
			Reason: "landing pages not found: " + strings.Join(missing, ", "),
		}
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	for i := range e.Variants {
		if e.Variants[i].ID == "" {
			e.Variants[i].ID = uuid.NewString()
		}
	}
	e.Status = store.StatusDraft

	if err := r.store.CreateExperiment(ctx, e); err != nil {
		return err
	}
	r.logger.Info("experiment created", "experiment_id", e.ID, "name", e.Name)
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (*store.Experiment, error) {
	return r.store.GetExperiment(ctx, id)
}

func (r *Registry) List(ctx context.Context, status store.ExperimentStatus) ([]*store.Experiment, error) {
	return r.store.ListExperiments(ctx, status)
}

// UpdatePatch carries an experiment update. Nil fields are left alone.
type UpdatePatch struct {
	Name        *string
	Description *string
	EndDate     *time.Time
	Config      *store.ExperimentConfig
	Variants    []store.Variant
	Goals       []store.Goal
}

// structural reports whether the patch touches fields frozen while the
// experiment runs.
func (p *UpdatePatch) structural() bool {
	return p.Name != nil || p.Config != nil || p.Variants != nil || p.Goals != nil
}

// Update applies a patch. While running only description and end date may
// change; structural edits are rejected.
func (r *Registry) Update(ctx context.Context, id string, patch UpdatePatch) (*store.Experiment, error) {
	e, err := r.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}

	if e.Status == store.StatusRunning && patch.structural() {
		return nil, &ValidationError{
			Field:  "status",
			Reason: "only description and end date may change while the experiment is running",
		}
	}

	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.EndDate != nil {
		e.EndDate = patch.EndDate
	}
	if patch.Config != nil {
		e.Config = *patch.Config
		applyConfigDefaults(&e.Config)
	}
	if patch.Variants != nil {
		e.Variants = patch.Variants
		for i := range e.Variants {
			if e.Variants[i].ID == "" {
				e.Variants[i].ID = uuid.NewString()
			}
		}
	}
	if patch.Goals != nil {
		e.Goals = patch.Goals
	}

	if err := ValidateDefinition(e); err != nil {
		return nil, err
	}
	if err := r.store.UpdateExperiment(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Start transitions a draft or paused experiment to running, stamping the
// date window and (re)zeroing per-variant statistics. Starting is refused
// when another running experiment already targets one of the same landing
// pages; overlapping experiments would otherwise race for assignment.
func (r *Registry) Start(ctx context.Context, id string) (*store.Experiment, error) {
	e, err := r.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanStart(e.Status) {
		return nil, &TransitionError{From: e.Status, Action: "start"}
	}
	if len(e.Variants) < 2 {
		return nil, &ValidationError{Field: "variants", Reason: "at least 2 variants required to start"}
	}
	if len(e.Goals) < 1 {
		return nil, &ValidationError{Field: "goals", Reason: "at least 1 goal required to start"}
	}
	if err := r.checkOverlap(ctx, e); err != nil {
		return nil, err
	}

	now := r.now()
	end := now.Add(time.Duration(e.Config.DurationDays) * 24 * time.Hour)
	e.Status = store.StatusRunning
	e.StartDate = &now
	e.EndDate = &end
	e.Winner = nil
	e.ActualEndDate = nil

	variantIDs := make([]string, 0, len(e.Variants))
	for _, v := range e.Variants {
		variantIDs = append(variantIDs, v.ID)
	}
	if err := r.store.ResetVariantStats(ctx, e.ID, variantIDs); err != nil {
		return nil, err
	}
	if err := r.store.UpdateExperiment(ctx, e); err != nil {
		return nil, err
	}
	r.logger.Info("experiment started", "experiment_id", e.ID, "end_date", end)
	return e, nil
}

func (r *Registry) checkOverlap(ctx context.Context, e *store.Experiment) error {
	running, err := r.store.ListExperiments(ctx, store.StatusRunning)
	if err != nil {
		return err
	}
	for _, other := range running {
		if other.ID == e.ID {
			continue
		}
		for _, v := range e.Variants {
			if other.HasPage(v.LandingPageID) {
				return &ValidationError{
					Field: "variants.landingPageId",
					Reason: fmt.Sprintf("landing page %s is already part of running experiment %s",
						v.LandingPageID, other.ID),
				}
			}
		}
	}
	return nil
}

// Pause transitions a running experiment to paused.
func (r *Registry) Pause(ctx context.Context, id string) (*store.Experiment, error) {
	e, err := r.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanPause(e.Status) {
		return nil, &TransitionError{From: e.Status, Action: "pause"}
	}
	e.Status = store.StatusPaused
	if err := r.store.UpdateExperiment(ctx, e); err != nil {
		return nil, err
	}
	r.logger.Info("experiment paused", "experiment_id", e.ID)
	return e, nil
}

// Stop completes a running or paused experiment, computing the final
// analysis and recording a winner when significant. The completed status
// is terminal.
func (r *Registry) Stop(ctx context.Context, id string) (*store.Experiment, stats.Analysis, error) {
	e, err := r.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, stats.Analysis{}, err
	}
	if !CanStop(e.Status) {
		return nil, stats.Analysis{}, &TransitionError{From: e.Status, Action: "stop"}
	}

	analysis, err := r.analyze(ctx, e)
	if err != nil {
		return nil, stats.Analysis{}, err
	}

	now := r.now()
	e.Status = store.StatusCompleted
	e.ActualEndDate = &now
	if analysis.Significant {
		e.Winner = &store.Winner{
			VariantID:   analysis.WinnerID,
			Confidence:  analysis.Confidence,
			Improvement: analysis.Improvement,
		}
	}
	if err := r.store.UpdateExperiment(ctx, e); err != nil {
		return nil, stats.Analysis{}, err
	}

	r.logger.Info("experiment stopped", "experiment_id", e.ID, "significant", analysis.Significant)
	r.hooks.ExperimentCompleted(ctx, e.ID, analysis)
	return e, analysis, nil
}

// Clone copies an experiment into a fresh draft: new identity, zeroed
// statistics, no dates or winner.
func (r *Registry) Clone(ctx context.Context, id string) (*store.Experiment, error) {
	src, err := r.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}

	clone := &store.Experiment{
		ID:          uuid.NewString(),
		Name:        src.Name + " (copy)",
		Description: src.Description,
		Status:      store.StatusDraft,
		Variants:    append([]store.Variant(nil), src.Variants...),
		Goals:       append([]store.Goal(nil), src.Goals...),
		Config:      src.Config,
	}
	if err := r.store.CreateExperiment(ctx, clone); err != nil {
		return nil, err
	}
	r.logger.Info("experiment cloned", "source_id", src.ID, "experiment_id", clone.ID)
	return clone, nil
}

// Delete removes an experiment. Running experiments must be stopped or
// paused first.
func (r *Registry) Delete(ctx context.Context, id string) error {
	e, err := r.store.GetExperiment(ctx, id)
	if err != nil {
		return err
	}
	if e.Status == store.StatusRunning {
		return &TransitionError{From: e.Status, Action: "delete"}
	}
	return r.store.DeleteExperiment(ctx, id)
}

// CandidateForPage returns the experiment that should drive assignment
// for a landing page: the most recently created running experiment whose
// variants include it and whose date window covers now. Nil when no
// experiment matches.
func (r *Registry) CandidateForPage(ctx context.Context, pageID string) (*store.Experiment, error) {
	matches, err := r.store.RunningExperimentsForPage(ctx, pageID, r.now())
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	// Store order is newest-created first.
	return matches[0], nil
}

// Statistics returns the current counter rows in variant declaration
// order together with the significance analysis.
func (r *Registry) Statistics(ctx context.Context, id string) (*store.Experiment, []store.VariantStats, stats.Analysis, error) {
	e, err := r.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, nil, stats.Analysis{}, err
	}
	rows, err := r.orderedStats(ctx, e)
	if err != nil {
		return nil, nil, stats.Analysis{}, err
	}
	return e, rows, stats.Analyze(rows, e.Config.SignificanceThreshold), nil
}

func (r *Registry) analyze(ctx context.Context, e *store.Experiment) (stats.Analysis, error) {
	rows, err := r.orderedStats(ctx, e)
	if err != nil {
		return stats.Analysis{}, err
	}
	return stats.Analyze(rows, e.Config.SignificanceThreshold), nil
}

// orderedStats aligns counter rows with variant declaration order, so the
// control (first variant) anchors every comparison.
func (r *Registry) orderedStats(ctx context.Context, e *store.Experiment) ([]store.VariantStats, error) {
	rows, err := r.store.GetVariantStats(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.VariantStats, len(rows))
	for _, row := range rows {
		byID[row.VariantID] = row
	}
	ordered := make([]store.VariantStats, 0, len(rows))
	for _, v := range e.Variants {
		if row, ok := byID[v.ID]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

func applyConfigDefaults(c *store.ExperimentConfig) {
	defaults := store.DefaultConfig()
	if c.TrafficSplit == 0 {
		c.TrafficSplit = defaults.TrafficSplit
	}
	if c.DurationDays == 0 {
		c.DurationDays = defaults.DurationDays
	}
	if c.MinSampleSize == 0 {
		c.MinSampleSize = defaults.MinSampleSize
	}
	if c.ConfidenceLevel == 0 {
		c.ConfidenceLevel = defaults.ConfidenceLevel
	}
	if c.SignificanceThreshold == 0 {
		c.SignificanceThreshold = defaults.SignificanceThreshold
	}
}
