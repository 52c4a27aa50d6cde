// Package storage persists scan runs, picks, cached stat series and the
// scheduler's once-per-day state in a SQL database.
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite, pure Go, the
// default for single-host deployments) and "postgres" (lib/pq). Queries are
// written with ? placeholders and rebound for postgres at execution time.
// Timestamps are stored as RFC 3339 text so both drivers round-trip them
// identically.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/flooorgang/floorline/internal/models"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	dateLayout = "2006-01-02"
)

// ErrNotFound is returned when a pick or state key does not exist.
var ErrNotFound = errors.New("not found")

// Storage is a SQL-backed store for runs, picks, series cache and scheduler state
type Storage struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// New opens the database and creates the schema if needed.
// For sqlite, dsn is a file path or ":memory:".
func New(driver, dsn string) (*Storage, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection: :memory: databases are per-connection and sqlite serializes writers anyway
		db.SetMaxOpenConns(1)
	}

	s := &Storage{db: db, driver: driver, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) migrate(ctx context.Context) error {
	types := strings.NewReplacer(
		"{serial}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{real}", "REAL",
		"{blob}", "BLOB",
	)
	if s.driver == DriverPostgres {
		types = strings.NewReplacer(
			"{serial}", "BIGSERIAL PRIMARY KEY",
			"{real}", "DOUBLE PRECISION",
			"{blob}", "BYTEA",
		)
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scan_runs (
		id {serial},
		sport TEXT NOT NULL,
		scan_date TEXT NOT NULL,
		analyzed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		skip_reasons TEXT NOT NULL,
		opportunities INTEGER NOT NULL,
		requests_remaining INTEGER,
		games_scheduled INTEGER NOT NULL,
		games_with_props INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS picks (
		id TEXT PRIMARY KEY,
		run_id BIGINT NOT NULL REFERENCES scan_runs(id),
		sport TEXT NOT NULL,
		scan_date TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_kind TEXT NOT NULL,
		statistic TEXT NOT NULL,
		side TEXT NOT NULL,
		line_value {real} NOT NULL,
		odds INTEGER,
		reference_value {real} NOT NULL,
		floor_value {real} NOT NULL,
		ceiling_value {real} NOT NULL,
		average {real} NOT NULL,
		sample_size INTEGER NOT NULL,
		confidence_tier TEXT NOT NULL,
		lower_bound {real} NOT NULL,
		upper_bound {real} NOT NULL,
		hit_rate {real} NOT NULL,
		supporting_series TEXT NOT NULL,
		detected_at TEXT NOT NULL,
		actual_value {real},
		result TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_picks_scan_date ON picks(scan_date)`,
	`CREATE TABLE IF NOT EXISTS series_cache (
		cache_key TEXT PRIMARY KEY,
		value {blob} NOT NULL,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scheduler_state (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Storage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// SaveRun stores a run summary and its opportunities in one transaction and
// sets run.ID.
func (s *Storage) SaveRun(ctx context.Context, run *models.ScanRun, opps []models.Opportunity) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	for i := range opps {
		if err := opps[i].Validate(); err != nil {
			return fmt.Errorf("invalid opportunity %s: %w", opps[i].Entity, err)
		}
	}

	reasons, err := json.Marshal(run.SkipReasons)
	if err != nil {
		return fmt.Errorf("failed to encode skip reasons: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var remaining sql.NullInt64
	if run.RequestsRemaining != nil {
		remaining = sql.NullInt64{Int64: int64(*run.RequestsRemaining), Valid: true}
	}

	var runID int64
	err = tx.QueryRowContext(ctx, s.rebind(`
		INSERT INTO scan_runs (
			sport, scan_date, analyzed, skipped, skip_reasons, opportunities,
			requests_remaining, games_scheduled, games_with_props, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		run.Sport,
		run.ScanDate.Format(dateLayout),
		run.Analyzed,
		run.Skipped,
		string(reasons),
		run.Opportunities,
		remaining,
		run.GamesScheduled,
		run.GamesWithProps,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	pickQuery := s.rebind(`
		INSERT INTO picks (
			id, run_id, sport, scan_date, entity, entity_kind, statistic, side,
			line_value, odds, reference_value, floor_value, ceiling_value, average,
			sample_size, confidence_tier, lower_bound, upper_bound, hit_rate,
			supporting_series, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for _, o := range opps {
		series, err := json.Marshal(o.SupportingSeries)
		if err != nil {
			return fmt.Errorf("failed to encode series for %s: %w", o.Entity, err)
		}
		var odds sql.NullInt64
		if o.Odds != nil {
			odds = sql.NullInt64{Int64: int64(*o.Odds), Valid: true}
		}

		_, err = tx.ExecContext(ctx, pickQuery,
			o.ID, runID, run.Sport, run.ScanDate.Format(dateLayout),
			o.Entity, string(o.Kind), o.Statistic, string(o.Side),
			o.LineValue, odds, o.ReferenceValue, o.Floor, o.Ceiling, o.Average,
			o.SampleSize, string(o.ConfidenceTier), o.LowerBound, o.UpperBound, o.HitRate,
			string(series), formatTime(o.DetectedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert pick %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID = runID
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]models.ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, sport, scan_date, analyzed, skipped, skip_reasons, opportunities,
			requests_remaining, games_scheduled, games_with_props, started_at, finished_at
		FROM scan_runs
		ORDER BY id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.ScanRun, 0)
	for rows.Next() {
		var (
			run                   models.ScanRun
			scanDate, reasons     string
			startedAt, finishedAt string
			remaining             sql.NullInt64
		)
		if err := rows.Scan(
			&run.ID, &run.Sport, &scanDate, &run.Analyzed, &run.Skipped, &reasons,
			&run.Opportunities, &remaining, &run.GamesScheduled, &run.GamesWithProps,
			&startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if run.ScanDate, err = time.Parse(dateLayout, scanDate); err != nil {
			return nil, fmt.Errorf("run %d has bad scan date: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(reasons), &run.SkipReasons); err != nil {
			return nil, fmt.Errorf("run %d has bad skip reasons: %w", run.ID, err)
		}
		if remaining.Valid {
			v := int(remaining.Int64)
			run.RequestsRemaining = &v
		}
		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("run %d has bad start time: %w", run.ID, err)
		}
		if run.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, fmt.Errorf("run %d has bad finish time: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PicksByDate returns the picks stored for a scan date, optionally only the
// ones not yet graded.
func (s *Storage) PicksByDate(ctx context.Context, date time.Time, unscoredOnly bool) ([]models.Pick, error) {
	query := `
		SELECT id, run_id, sport, scan_date, entity, entity_kind, statistic, side,
			line_value, odds, reference_value, floor_value, ceiling_value, average,
			sample_size, confidence_tier, lower_bound, upper_bound, hit_rate,
			supporting_series, detected_at, actual_value, result
		FROM picks
		WHERE scan_date = ?`
	if unscoredOnly {
		query += ` AND result = ''`
	}
	query += ` ORDER BY entity, statistic, side`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), date.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query picks: %w", err)
	}
	defer rows.Close()

	picks := make([]models.Pick, 0)
	for rows.Next() {
		var (
			p                  models.Pick
			kind, side, tier   string
			scanDate, detected string
			series, result     string
			odds               sql.NullInt64
			actual             sql.NullFloat64
		)
		if err := rows.Scan(
			&p.ID, &p.RunID, &p.Sport, &scanDate, &p.Entity, &kind, &p.Statistic, &side,
			&p.LineValue, &odds, &p.ReferenceValue, &p.Floor, &p.Ceiling, &p.Average,
			&p.SampleSize, &tier, &p.LowerBound, &p.UpperBound, &p.HitRate,
			&series, &detected, &actual, &result,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pick: %w", err)
		}

		p.Kind = models.EntityKind(kind)
		p.Side = models.Side(side)
		p.ConfidenceTier = models.ConfidenceTier(tier)
		p.Result = models.PickResult(result)
		if odds.Valid {
			v := int(odds.Int64)
			p.Odds = &v
		}
		if actual.Valid {
			v := actual.Float64
			p.ActualValue = &v
		}
		if p.ScanDate, err = time.Parse(dateLayout, scanDate); err != nil {
			return nil, fmt.Errorf("pick %s has bad scan date: %w", p.ID, err)
		}
		if p.DetectedAt, err = parseTime(detected); err != nil {
			return nil, fmt.Errorf("pick %s has bad detection time: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(series), &p.SupportingSeries); err != nil {
			return nil, fmt.Errorf("pick %s has bad supporting series: %w", p.ID, err)
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

// GradePick records the actual outcome of a pick.
func (s *Storage) GradePick(ctx context.Context, id string, actual float64, result models.PickResult) error {
	if result != models.ResultHit && result != models.ResultMiss {
		return fmt.Errorf("invalid pick result: %q", result)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE picks SET actual_value = ?, result = ? WHERE id = ?`),
		actual, string(result), id)
	if err != nil {
		return fmt.Errorf("failed to grade pick %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to grade pick %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("pick %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get reads a cached value; expired rows are misses.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT value, expires_at FROM series_cache WHERE cache_key = ?`), key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache %s: %w", key, err)
	}
	if expiresAt > 0 && s.now().Unix() >= expiresAt {
		return nil, false, nil
	}
	return value, true, nil
}

// Set upserts a cached value; ttl <= 0 stores without expiry.
func (s *Storage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).Unix()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO series_cache (cache_key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`),
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write cache %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes expired cache rows and returns how many were removed.
func (s *Storage) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM series_cache WHERE expires_at > 0 AND expires_at <= ?`), s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

func (s *Storage) getState(ctx context.Context, name string) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT value FROM scheduler_state WHERE name = ?`), name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return parseTime(value)
}

func (s *Storage) setState(ctx context.Context, name string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO scheduler_state (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`),
		name, formatTime(t))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// LastRun returns when the scheduler last ran a scan for sport, or the zero time.
func (s *Storage) LastRun(ctx context.Context, sport string) (time.Time, error) {
	return s.getState(ctx, "last_run:"+sport)
}

// MarkRun records that a scheduled scan for sport ran at t.
func (s *Storage) MarkRun(ctx context.Context, sport string, t time.Time) error {
	return s.setState(ctx, "last_run:"+sport, t)
}

// FirstGame returns the cached first tip-off for sport, or the zero time.
func (s *Storage) FirstGame(ctx context.Context, sport string) (time.Time, error) {
	return s.getState(ctx, "first_game:"+sport)
}

// SetFirstGame caches the earliest commence time of the current slate.
func (s *Storage) SetFirstGame(ctx context.Context, sport string, t time.Time) error {
	return s.setState(ctx, "first_game:"+sport, t)
}
