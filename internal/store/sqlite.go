package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS domains (
    id TEXT PRIMARY KEY,
    domain TEXT UNIQUE NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    cloak_enabled INTEGER NOT NULL DEFAULT 1,
    cloak_page_id TEXT,
    main_page_id TEXT,
    total_visits INTEGER NOT NULL DEFAULT 0,
    unique_visitors INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_domains_domain ON domains(domain);

CREATE TABLE IF NOT EXISTS landing_pages (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    html TEXT NOT NULL,
    css TEXT NOT NULL DEFAULT '',
    js TEXT NOT NULL DEFAULT '',
    seo_title TEXT NOT NULL DEFAULT '',
    seo_description TEXT NOT NULL DEFAULT '',
    seo_keywords TEXT NOT NULL DEFAULT '',
    views INTEGER NOT NULL DEFAULT 0,
    clicks INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS experiments (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft',
    variants TEXT NOT NULL,
    goals TEXT NOT NULL,
    config TEXT NOT NULL,
    total_visitors INTEGER NOT NULL DEFAULT 0,
    winner TEXT,
    start_date INTEGER,
    end_date INTEGER,
    actual_end_date INTEGER,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments(status, created_at);

CREATE TABLE IF NOT EXISTS variant_stats (
    experiment_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    visitors INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    conversion_rate REAL NOT NULL DEFAULT 0,
    revenue REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (experiment_id, variant_id),
    FOREIGN KEY (experiment_id) REFERENCES experiments(id)
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: sqlite allows one writer at a time and the
	// driver surfaces SQLITE_BUSY instead of queueing.
	db.SetMaxOpenConns(1)

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- Domains ---

func (s *SQLiteStore) CreateDomain(ctx context.Context, d *Domain) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.Status == "" {
		d.Status = DomainPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domains (id, domain, status, cloak_enabled, cloak_page_id, main_page_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Domain, string(d.Status), boolToInt(d.CloakEnabled),
		nullString(d.CloakPageID), nullString(d.MainPageID), d.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert domain: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDomain(ctx context.Context, id string) (*Domain, error) {
	return s.scanDomain(s.db.QueryRowContext(ctx, domainSelect+` WHERE id = ?`, id))
}

func (s *SQLiteStore) GetDomainByName(ctx context.Context, name string) (*Domain, error) {
	return s.scanDomain(s.db.QueryRowContext(ctx, domainSelect+` WHERE domain = ?`, name))
}

const domainSelect = `SELECT id, domain, status, cloak_enabled, cloak_page_id, main_page_id,
	total_visits, unique_visitors, conversions, created_at FROM domains`

func (s *SQLiteStore) scanDomain(row *sql.Row) (*Domain, error) {
	var d Domain
	var status string
	var cloakEnabled int
	var cloakPage, mainPage sql.NullString
	var createdAt int64

	err := row.Scan(&d.ID, &d.Domain, &status, &cloakEnabled, &cloakPage, &mainPage,
		&d.TotalVisits, &d.UniqueVisitors, &d.Conversions, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}

	d.Status = DomainStatus(status)
	d.CloakEnabled = cloakEnabled != 0
	d.CloakPageID = cloakPage.String
	d.MainPageID = mainPage.String
	d.CreatedAt = time.Unix(createdAt, 0)
	return &d, nil
}

func (s *SQLiteStore) IncrementDomainVisits(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE domains SET total_visits = total_visits + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment domain visits: %w", err)
	}
	return requireRow(result)
}

// --- Landing pages ---

func (s *SQLiteStore) CreatePage(ctx context.Context, p *LandingPage) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO landing_pages (id, name, type, html, css, js, seo_title, seo_description, seo_keywords, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Type), p.HTML, p.CSS, p.JS,
		p.SEOTitle, p.SEODescription, p.SEOKeywords, boolToInt(p.IsActive),
		p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert landing page: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPage(ctx context.Context, id string) (*LandingPage, error) {
	var p LandingPage
	var pageType string
	var isActive int
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, html, css, js, seo_title, seo_description, seo_keywords,
		        views, clicks, conversions, is_active, created_at, updated_at
		 FROM landing_pages WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &pageType, &p.HTML, &p.CSS, &p.JS,
		&p.SEOTitle, &p.SEODescription, &p.SEOKeywords,
		&p.Views, &p.Clicks, &p.Conversions, &isActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get landing page: %w", err)
	}

	p.Type = PageType(pageType)
	p.IsActive = isActive != 0
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// MissingPages returns the subset of ids with no landing_pages row.
func (s *SQLiteStore) MissingPages(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM landing_pages WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check landing pages: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan landing page id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to check landing pages: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *SQLiteStore) IncrementPageViews(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE landing_pages SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment page views: %w", err)
	}
	return requireRow(result)
}

// --- Experiments ---

func (s *SQLiteStore) CreateExperiment(ctx context.Context, e *Experiment) error {
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = StatusDraft
	}

	variantsJSON, goalsJSON, configJSON, winnerJSON, err := marshalExperiment(e)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO experiments (id, name, description, status, variants, goals, config,
		                          total_visitors, winner, start_date, end_date, actual_end_date,
		                          created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Description, string(e.Status),
		variantsJSON, goalsJSON, configJSON, e.TotalVisitors, winnerJSON,
		nullTime(e.StartDate), nullTime(e.EndDate), nullTime(e.ActualEndDate),
		e.CreatedAt.Unix(), e.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert experiment: %w", err)
	}
	return nil
}

const experimentSelect = `SELECT id, name, description, status, variants, goals, config,
	total_visitors, winner, start_date, end_date, actual_end_date, created_at, updated_at
	FROM experiments`

func (s *SQLiteStore) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	rows, err := s.db.QueryContext(ctx, experimentSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get experiment: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanExperiment(rows)
}

func (s *SQLiteStore) ListExperiments(ctx context.Context, status ExperimentStatus) ([]*Experiment, error) {
	query := experimentSelect
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	return experiments, nil
}

func (s *SQLiteStore) UpdateExperiment(ctx context.Context, e *Experiment) error {
	e.UpdatedAt = time.Now()

	variantsJSON, goalsJSON, configJSON, winnerJSON, err := marshalExperiment(e)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET name = ?, description = ?, status = ?, variants = ?, goals = ?,
		        config = ?, winner = ?, start_date = ?, end_date = ?, actual_end_date = ?,
		        updated_at = ?
		 WHERE id = ?`,
		e.Name, e.Description, string(e.Status), variantsJSON, goalsJSON, configJSON,
		winnerJSON, nullTime(e.StartDate), nullTime(e.EndDate), nullTime(e.ActualEndDate),
		e.UpdatedAt.Unix(), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStore) DeleteExperiment(ctx context.Context, id string) error {
	// Stats rows first
	if _, err := s.db.ExecContext(ctx, `DELETE FROM variant_stats WHERE experiment_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete variant stats: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	return requireRow(result)
}

// RunningExperimentsForPage returns running experiments inside their date
// window whose variant set references the given page, newest first. Variant
// membership is checked after load since variants live in a JSON column.
func (s *SQLiteStore) RunningExperimentsForPage(ctx context.Context, pageID string, now time.Time) ([]*Experiment, error) {
	running, err := s.ListExperiments(ctx, StatusRunning)
	if err != nil {
		return nil, err
	}

	var matches []*Experiment
	for _, e := range running {
		if e.ActiveAt(now) && e.HasPage(pageID) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// --- Variant counters ---

func (s *SQLiteStore) ResetVariantStats(ctx context.Context, experimentID string, variantIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM variant_stats WHERE experiment_id = ?`, experimentID); err != nil {
		return fmt.Errorf("failed to clear variant stats: %w", err)
	}
	for _, variantID := range variantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO variant_stats (experiment_id, variant_id) VALUES (?, ?)`,
			experimentID, variantID); err != nil {
			return fmt.Errorf("failed to init variant stats: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE experiments SET total_visitors = 0 WHERE id = ?`, experimentID); err != nil {
		return fmt.Errorf("failed to reset visitor count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit variant stats reset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetVariantStats(ctx context.Context, experimentID string) ([]VariantStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT experiment_id, variant_id, visitors, conversions, conversion_rate, revenue
		 FROM variant_stats WHERE experiment_id = ? ORDER BY rowid`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get variant stats: %w", err)
	}
	defer rows.Close()

	var stats []VariantStats
	for rows.Next() {
		var vs VariantStats
		if err := rows.Scan(&vs.ExperimentID, &vs.VariantID, &vs.Visitors,
			&vs.Conversions, &vs.ConversionRate, &vs.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan variant stats: %w", err)
		}
		stats = append(stats, vs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get variant stats: %w", err)
	}
	return stats, nil
}

// RecordVisit atomically increments the variant's visitor counter and the
// experiment's total.
func (s *SQLiteStore) RecordVisit(ctx context.Context, experimentID, variantID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE variant_stats SET visitors = visitors + 1,
		        conversion_rate = CAST(conversions AS REAL) / (visitors + 1)
		 WHERE experiment_id = ? AND variant_id = ?`,
		experimentID, variantID)
	if err != nil {
		return fmt.Errorf("failed to record visit: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE experiments SET total_visitors = total_visitors + 1 WHERE id = ?`,
		experimentID); err != nil {
		return fmt.Errorf("failed to record visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit visit: %w", err)
	}
	return nil
}

// RecordConversion atomically increments conversions and recomputes the
// conversion rate in the same statement.
func (s *SQLiteStore) RecordConversion(ctx context.Context, experimentID, variantID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE variant_stats SET conversions = conversions + 1,
		        conversion_rate = CASE WHEN visitors > 0
		            THEN CAST(conversions + 1 AS REAL) / visitors ELSE 0 END
		 WHERE experiment_id = ? AND variant_id = ?`,
		experimentID, variantID)
	if err != nil {
		return fmt.Errorf("failed to record conversion: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStore) AddRevenue(ctx context.Context, experimentID, variantID string, value float64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE variant_stats SET revenue = revenue + ?
		 WHERE experiment_id = ? AND variant_id = ?`,
		value, experimentID, variantID)
	if err != nil {
		return fmt.Errorf("failed to add revenue: %w", err)
	}
	return requireRow(result)
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*Experiment, error) {
	var e Experiment
	var status string
	var variantsJSON, goalsJSON, configJSON string
	var winnerJSON sql.NullString
	var startDate, endDate, actualEndDate sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&e.ID, &e.Name, &e.Description, &status,
		&variantsJSON, &goalsJSON, &configJSON, &e.TotalVisitors, &winnerJSON,
		&startDate, &endDate, &actualEndDate, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan experiment: %w", err)
	}

	e.Status = ExperimentStatus(status)
	if err := json.Unmarshal([]byte(variantsJSON), &e.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}
	if err := json.Unmarshal([]byte(goalsJSON), &e.Goals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal goals: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &e.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if winnerJSON.Valid && winnerJSON.String != "" {
		var w Winner
		if err := json.Unmarshal([]byte(winnerJSON.String), &w); err != nil {
			return nil, fmt.Errorf("failed to unmarshal winner: %w", err)
		}
		e.Winner = &w
	}

	e.StartDate = timePtr(startDate)
	e.EndDate = timePtr(endDate)
	e.ActualEndDate = timePtr(actualEndDate)
	e.CreatedAt = time.Unix(createdAt, 0)
	e.UpdatedAt = time.Unix(updatedAt, 0)
	return &e, nil
}

func marshalExperiment(e *Experiment) (variants, goals, config string, winner sql.NullString, err error) {
	variantsJSON, err := json.Marshal(e.Variants)
	if err != nil {
		return "", "", "", sql.NullString{}, fmt.Errorf("failed to marshal variants: %w", err)
	}
	goalsJSON, err := json.Marshal(e.Goals)
	if err != nil {
		return "", "", "", sql.NullString{}, fmt.Errorf("failed to marshal goals: %w", err)
	}
	configJSON, err := json.Marshal(e.Config)
	if err != nil {
		return "", "", "", sql.NullString{}, fmt.Errorf("failed to marshal config: %w", err)
	}
	if e.Winner != nil {
		winnerJSON, err := json.Marshal(e.Winner)
		if err != nil {
			return "", "", "", sql.NullString{}, fmt.Errorf("failed to marshal winner: %w", err)
		}
		winner = sql.NullString{String: string(winnerJSON), Valid: true}
	}
	return string(variantsJSON), string(goalsJSON), string(configJSON), winner, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}
