package store

import "time"

type DomainStatus string

const (
	DomainActive   DomainStatus = "active"
	DomainInactive DomainStatus = "inactive"
	DomainBlocked  DomainStatus = "blocked"
	DomainPending  DomainStatus = "pending"
)

type PageType string

const (
	PageMain     PageType = "main"
	PageCloak    PageType = "cloak"
	PageRedirect PageType = "redirect"
)

type ExperimentStatus string

const (
	StatusDraft     ExperimentStatus = "draft"
	StatusRunning   ExperimentStatus = "running"
	StatusPaused    ExperimentStatus = "paused"
	StatusCompleted ExperimentStatus = "completed"
)

// Domain binds a served hostname to its landing pages and cloak settings.
type Domain struct {
	ID             string       `json:"id"`
	Domain         string       `json:"domain"`
	Status         DomainStatus `json:"status"`
	CloakEnabled   bool         `json:"cloakEnabled"`
	CloakPageID    string       `json:"cloakPageId,omitempty"`
	MainPageID     string       `json:"mainPageId,omitempty"`
	TotalVisits    int64        `json:"totalVisits"`
	UniqueVisitors int64        `json:"uniqueVisitors"`
	Conversions    int64        `json:"conversions"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// LandingPage holds a content bundle. The bundle is opaque to the serving
// pipeline; it is stored and emitted verbatim.
type LandingPage struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           PageType  `json:"type"`
	HTML           string    `json:"html"`
	CSS            string    `json:"css"`
	JS             string    `json:"js"`
	SEOTitle       string    `json:"seoTitle,omitempty"`
	SEODescription string    `json:"seoDescription,omitempty"`
	SEOKeywords    string    `json:"seoKeywords,omitempty"`
	Views          int64     `json:"views"`
	Clicks         int64     `json:"clicks"`
	Conversions    int64     `json:"conversions"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Variant is one arm of an experiment, bound to a landing page.
type Variant struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	LandingPageID string  `json:"landingPageId"`
	Weight        float64 `json:"weight"`
	IsControl     bool    `json:"isControl"`
}

// Goal describes what counts as a conversion for an experiment.
type Goal struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"` // click, conversion, engagement, custom
	Target    string  `json:"target"`
	Weight    float64 `json:"weight"`
	IsPrimary bool    `json:"isPrimary"`
}

// ExperimentConfig carries per-experiment tunables.
type ExperimentConfig struct {
	TrafficSplit          int     `json:"trafficSplit"`
	DurationDays          int     `json:"durationDays"`
	MinSampleSize         int     `json:"minSampleSize"`
	ConfidenceLevel       float64 `json:"confidenceLevel"`
	SignificanceThreshold float64 `json:"significanceThreshold"`
}

// Winner records the outcome of a completed experiment, when significant.
type Winner struct {
	VariantID   string  `json:"variantId"`
	Confidence  float64 `json:"confidence"`
	Improvement float64 `json:"improvement"`
}

type Experiment struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Status        ExperimentStatus `json:"status"`
	Variants      []Variant        `json:"variants"`
	Goals         []Goal           `json:"goals"`
	Config        ExperimentConfig `json:"config"`
	TotalVisitors int64            `json:"totalVisitors"`
	Winner        *Winner          `json:"winner,omitempty"`
	StartDate     *time.Time       `json:"startDate,omitempty"`
	EndDate       *time.Time       `json:"endDate,omitempty"`
	ActualEndDate *time.Time       `json:"actualEndDate,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Variant returns the variant with the given id, or nil.
func (e *Experiment) Variant(id string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return &e.Variants[i]
		}
	}
	return nil
}

// HasPage reports whether any variant references the given landing page.
func (e *Experiment) HasPage(pageID string) bool {
	for _, v := range e.Variants {
		if v.LandingPageID == pageID {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the experiment is running and inside its
// start/end window at the given instant. A missing end date means the
// experiment runs until stopped.
func (e *Experiment) ActiveAt(now time.Time) bool {
	if e.Status != StatusRunning {
		return false
	}
	if e.StartDate == nil || now.Before(*e.StartDate) {
		return false
	}
	if e.EndDate != nil && now.After(*e.EndDate) {
		return false
	}
	return true
}

// VariantStats is the per-variant counter row, one-to-one with an
// experiment's variants once the experiment has started.
type VariantStats struct {
	ExperimentID   string  `json:"experimentId"`
	VariantID      string  `json:"variantId"`
	Visitors       int64   `json:"visitors"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
	Revenue        float64 `json:"revenue"`
}

// DefaultConfig mirrors the defaults applied when a client omits fields.
func DefaultConfig() ExperimentConfig {
	return ExperimentConfig{
		TrafficSplit:          50,
		DurationDays:          7,
		MinSampleSize:         100,
		ConfidenceLevel:       95,
		SignificanceThreshold: 0.05,
	}
}
