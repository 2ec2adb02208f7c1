// Package usage persists completed gateway requests to SQLite and
// aggregates them for reporting.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/askgate/pkg/models"
)

// Store records and queries gateway usage.
type Store interface {
	// Record stores one completed request.
	Record(ctx context.Context, rec models.UsageRecord) error
	// Recent returns the newest records, optionally filtered by route.
	Recent(ctx context.Context, route string, limit int) ([]models.UsageRecord, error)
	// Summary aggregates records per route since a given time.
	Summary(ctx context.Context, route string, since time.Time) ([]models.UsageSummary, error)
	// FailureCounts groups failed requests by route and reason since a given time.
	FailureCounts(ctx context.Context, route string, since time.Time) ([]models.FailureCount, error)
	// Close releases resources.
	Close() error
}

// SQLiteStore implements Store with a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

const createTable = `
CREATE TABLE IF NOT EXISTS gateway_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL DEFAULT '',
	route TEXT NOT NULL,
	query_key TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	cached INTEGER NOT NULL DEFAULT 0,
	warning TEXT NOT NULL DEFAULT '',
	failure_kind TEXT NOT NULL DEFAULT '',
	failure_reason TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_gateway_requests_route_time ON gateway_requests(route, created_at);
`

// New creates a SQLiteStore and runs auto-migration.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage db: %w", err)
	}

	return &SQLiteStore{db: db, done: make(chan struct{})}, nil
}

// StartRetention deletes records older than retention once per interval
// until Close. A non-positive retention disables the sweep.
func (s *SQLiteStore) StartRetention(retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				_, _ = s.Cleanup(context.Background(), time.Now().Add(-retention))
			}
		}
	}()
}

// Cleanup deletes records created before cutoff.
func (s *SQLiteStore) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM gateway_requests WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("usage cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Record stores a usage record.
func (s *SQLiteStore) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gateway_requests (request_id, route, query_key, source, success, cached, warning,
			failure_kind, failure_reason, attempts, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Route, rec.QueryKey, rec.Source, rec.Success, rec.Cached, rec.Warning,
		rec.FailureKind, rec.FailureReason, rec.Attempts, rec.LatencyMs, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Recent returns the newest records first. An empty route matches all.
func (s *SQLiteStore) Recent(ctx context.Context, route string, limit int) ([]models.UsageRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, request_id, route, query_key, source, success, cached, warning,
		failure_kind, failure_reason, attempts, latency_ms, created_at
		FROM gateway_requests`
	var args []any
	if route != "" {
		query += ` WHERE route = ?`
		args = append(args, route)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Route, &r.QueryKey, &r.Source, &r.Success, &r.Cached,
			&r.Warning, &r.FailureKind, &r.FailureReason, &r.Attempts, &r.LatencyMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns per-route aggregates since the given time.
func (s *SQLiteStore) Summary(ctx context.Context, route string, since time.Time) ([]models.UsageSummary, error) {
	query := `SELECT route, COUNT(*),
			COALESCE(SUM(success), 0),
			COALESCE(SUM(CASE WHEN cached = 1 AND warning = '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN warning != '' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(latency_ms), 0)
		 FROM gateway_requests WHERE created_at >= ?`
	args := []any{since.UTC()}
	if route != "" {
		query += ` AND route = ?`
		args = append(args, route)
	}
	query += ` GROUP BY route ORDER BY route`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var sum models.UsageSummary
		if err := rows.Scan(&sum.Route, &sum.RequestCount, &sum.Successes, &sum.CacheHits, &sum.Fallbacks, &sum.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// FailureCounts returns failed requests grouped by route and reason,
// most frequent first.
func (s *SQLiteStore) FailureCounts(ctx context.Context, route string, since time.Time) ([]models.FailureCount, error) {
	query := `SELECT route, failure_reason, COUNT(*) FROM gateway_requests
		 WHERE success = 0 AND created_at >= ?`
	args := []any{since.UTC()}
	if route != "" {
		query += ` AND route = ?`
		args = append(args, route)
	}
	query += ` GROUP BY route, failure_reason ORDER BY COUNT(*) DESC, route, failure_reason`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failure counts: %w", err)
	}
	defer rows.Close()

	var counts []models.FailureCount
	for rows.Next() {
		var fc models.FailureCount
		if err := rows.Scan(&fc.Route, &fc.Reason, &fc.Count); err != nil {
			return nil, fmt.Errorf("scan failure count: %w", err)
		}
		counts = append(counts, fc)
	}
	return counts, rows.Err()
}

// Close stops the retention sweep and releases the database connection.
func (s *SQLiteStore) Close() error {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return s.db.Close()
}
