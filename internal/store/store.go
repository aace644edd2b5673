package store

import (
	"context"
	"time"
)

// Store defines persistence for domains, landing pages, experiments and
// their counters. Counter methods must be implemented as atomic in-place
// increments; concurrent requests race on them.
type Store interface {
	// Domain operations
	CreateDomain(ctx context.Context, d *Domain) error
	GetDomain(ctx context.Context, id string) (*Domain, error)
	GetDomainByName(ctx context.Context, name string) (*Domain, error)
	IncrementDomainVisits(ctx context.Context, id string) error

	// Landing page operations
	CreatePage(ctx context.Context, p *LandingPage) error
	GetPage(ctx context.Context, id string) (*LandingPage, error)
	MissingPages(ctx context.Context, ids []string) ([]string, error)
	IncrementPageViews(ctx context.Context, id string) error

	// Experiment operations
	CreateExperiment(ctx context.Context, e *Experiment) error
	GetExperiment(ctx context.Context, id string) (*Experiment, error)
	ListExperiments(ctx context.Context, status ExperimentStatus) ([]*Experiment, error)
	UpdateExperiment(ctx context.Context, e *Experiment) error
	DeleteExperiment(ctx context.Context, id string) error
	RunningExperimentsForPage(ctx context.Context, pageID string, now time.Time) ([]*Experiment, error)

	// Counter operations
	ResetVariantStats(ctx context.Context, experimentID string, variantIDs []string) error
	GetVariantStats(ctx context.Context, experimentID string) ([]VariantStats, error)
	RecordVisit(ctx context.Context, experimentID, variantID string) error
	RecordConversion(ctx context.Context, experimentID, variantID string) error
	AddRevenue(ctx context.Context, experimentID, variantID string, value float64) error

	// Lifecycle
	Close() error
}
