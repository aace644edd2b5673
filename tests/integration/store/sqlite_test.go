package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/landerd/landerd/internal/store"
	"github.com/landerd/landerd/tests/testutil"
)

func seedExperiment(t *testing.T, s *store.SQLiteStore, status store.ExperimentStatus, pageIDs ...string) *store.Experiment {
	t.Helper()
	e := &store.Experiment{
		ID:     uuid.NewString(),
		Name:   "seed",
		Status: status,
		Config: store.DefaultConfig(),
	}
	for _, pid := range pageIDs {
		e.Variants = append(e.Variants, store.Variant{
			ID:            uuid.NewString(),
			LandingPageID: pid,
			Weight:        100 / float64(len(pageIDs)),
		})
	}
	if status == store.StatusRunning {
		now := time.Now().Add(-time.Hour)
		end := now.Add(7 * 24 * time.Hour)
		e.StartDate = &now
		e.EndDate = &end
	}
	if err := s.CreateExperiment(context.Background(), e); err != nil {
		t.Fatalf("failed to create experiment: %v", err)
	}
	return e
}

func TestDomainRoundTrip(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	d := &store.Domain{
		ID:           uuid.NewString(),
		Domain:       "example.com",
		Status:       store.DomainActive,
		CloakEnabled: true,
		CloakPageID:  "cloak-1",
	}
	if err := s.CreateDomain(ctx, d); err != nil {
		t.Fatalf("failed to create domain: %v", err)
	}

	got, err := s.GetDomainByName(ctx, "example.com")
	if err != nil {
		t.Fatalf("failed to get domain: %v", err)
	}
	if got.ID != d.ID || !got.CloakEnabled || got.CloakPageID != "cloak-1" {
		t.Errorf("domain round trip mismatch: %+v", got)
	}

	if _, err := s.GetDomainByName(ctx, "missing.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.IncrementDomainVisits(ctx, d.ID); err != nil {
			t.Fatalf("failed to increment visits: %v", err)
		}
	}
	got, _ = s.GetDomain(ctx, d.ID)
	if got.TotalVisits != 3 {
		t.Errorf("total visits = %d, want 3", got.TotalVisits)
	}
}

func TestMissingPages(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	p := &store.LandingPage{ID: "p1", Name: "one", Type: store.PageMain, HTML: "<p>hi</p>", IsActive: true}
	if err := s.CreatePage(ctx, p); err != nil {
		t.Fatalf("failed to create page: %v", err)
	}

	missing, err := s.MissingPages(ctx, []string{"p1", "p2", "p3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(missing) != 2 || missing[0] != "p2" || missing[1] != "p3" {
		t.Errorf("missing = %v, want [p2 p3]", missing)
	}

	missing, err = s.MissingPages(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for empty input, got %v", missing)
	}
}

func TestExperimentRoundTrip(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	e := seedExperiment(t, s, store.StatusRunning, "page-1", "page-2")
	e.Winner = &store.Winner{VariantID: e.Variants[0].ID, Confidence: 0.97, Improvement: 12.5}
	if err := s.UpdateExperiment(ctx, e); err != nil {
		t.Fatalf("failed to update experiment: %v", err)
	}

	got, err := s.GetExperiment(ctx, e.ID)
	if err != nil {
		t.Fatalf("failed to get experiment: %v", err)
	}
	if len(got.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(got.Variants))
	}
	if got.Winner == nil || got.Winner.VariantID != e.Variants[0].ID {
		t.Errorf("winner not persisted: %+v", got.Winner)
	}
	if got.StartDate == nil || got.EndDate == nil {
		t.Error("date window not persisted")
	}

	if _, err := s.GetExperiment(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRunningExperimentsForPage(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	running := seedExperiment(t, s, store.StatusRunning, "page-1", "page-2")
	seedExperiment(t, s, store.StatusDraft, "page-1", "page-3")
	expired := seedExperiment(t, s, store.StatusRunning, "page-1", "page-4")

	// Push the third experiment's window into the past.
	past := time.Now().Add(-48 * time.Hour)
	end := past.Add(time.Hour)
	expired.StartDate = &past
	expired.EndDate = &end
	if err := s.UpdateExperiment(ctx, expired); err != nil {
		t.Fatalf("failed to update experiment: %v", err)
	}

	matches, err := s.RunningExperimentsForPage(ctx, "page-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if matches[0].ID != running.ID {
		t.Errorf("matched %s, want %s", matches[0].ID, running.ID)
	}

	matches, err = s.RunningExperimentsForPage(ctx, "page-9", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches for unknown page, got %d", len(matches))
	}
}

func TestVariantCounters(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	e := seedExperiment(t, s, store.StatusRunning, "page-1", "page-2")
	ids := []string{e.Variants[0].ID, e.Variants[1].ID}
	if err := s.ResetVariantStats(ctx, e.ID, ids); err != nil {
		t.Fatalf("failed to reset stats: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := s.RecordVisit(ctx, e.ID, ids[0]); err != nil {
			t.Fatalf("failed to record visit: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := s.RecordConversion(ctx, e.ID, ids[0]); err != nil {
			t.Fatalf("failed to record conversion: %v", err)
		}
	}
	if err := s.AddRevenue(ctx, e.ID, ids[0], 12.5); err != nil {
		t.Fatalf("failed to add revenue: %v", err)
	}
	if err := s.AddRevenue(ctx, e.ID, ids[0], 7.5); err != nil {
		t.Fatalf("failed to add revenue: %v", err)
	}

	rows, err := s.GetVariantStats(ctx, e.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	first := rows[0]
	if first.VariantID != ids[0] {
		first = rows[1]
	}
	if first.Visitors != 10 || first.Conversions != 3 {
		t.Errorf("counters = %d/%d, want 10/3", first.Visitors, first.Conversions)
	}
	if first.ConversionRate != 0.3 {
		t.Errorf("conversion rate = %f, want 0.3", first.ConversionRate)
	}
	if first.Revenue != 20 {
		t.Errorf("revenue = %f, want 20", first.Revenue)
	}

	// Unknown variant surfaces not found.
	if err := s.RecordVisit(ctx, e.ID, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	// Reset zeroes everything including the experiment total.
	if err := s.ResetVariantStats(ctx, e.ID, ids); err != nil {
		t.Fatalf("failed to reset stats: %v", err)
	}
	rows, _ = s.GetVariantStats(ctx, e.ID)
	for _, row := range rows {
		if row.Visitors != 0 || row.Conversions != 0 || row.Revenue != 0 {
			t.Errorf("expected zeroed row, got %+v", row)
		}
	}
	got, _ := s.GetExperiment(ctx, e.ID)
	if got.TotalVisitors != 0 {
		t.Errorf("total visitors = %d, want 0", got.TotalVisitors)
	}
}

func TestConcurrentVisits(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	e := seedExperiment(t, s, store.StatusRunning, "page-1", "page-2")
	ids := []string{e.Variants[0].ID, e.Variants[1].ID}
	if err := s.ResetVariantStats(ctx, e.ID, ids); err != nil {
		t.Fatalf("failed to reset stats: %v", err)
	}

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := s.RecordVisit(ctx, e.ID, ids[0]); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent visit failed: %v", err)
	}

	rows, err := s.GetVariantStats(ctx, e.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	for _, row := range rows {
		if row.VariantID == ids[0] && row.Visitors != workers*perWorker {
			t.Errorf("visitors = %d, want %d", row.Visitors, workers*perWorker)
		}
	}
	got, _ := s.GetExperiment(ctx, e.ID)
	if got.TotalVisitors != workers*perWorker {
		t.Errorf("total visitors = %d, want %d", got.TotalVisitors, workers*perWorker)
	}
}
