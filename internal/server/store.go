// Package server is the analytics aggregation backend (analyticsd): it
// receives usage events from opted-in clients and keeps day-and-event
// keyed counters.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DailyEvent is one aggregation row: counters for one event name on one
// calendar day.
type DailyEvent struct {
	Date        string `json:"date"`
	Event       string `json:"event"`
	TotalEvents int    `json:"total_events"`
	TotalItems  int    `json:"total_items"`
}

// Store persists the counters in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrency between event writes and stats reads.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS daily_events (
		date TEXT NOT NULL,
		event TEXT NOT NULL,
		total_events INTEGER NOT NULL DEFAULT 0,
		total_items INTEGER NOT NULL DEFAULT 0,
		UNIQUE(date, event)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Record increments the counters for one received event: the event counter
// by one, the item counter by items. Counters accumulate, they are never
// replaced.
func (s *Store) Record(ctx context.Context, date, event string, items int) error {
	query := `
		INSERT INTO daily_events (date, event, total_events, total_items)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(date, event) DO UPDATE SET
			total_events = total_events + 1,
			total_items = total_items + excluded.total_items`

	if _, err := s.db.ExecContext(ctx, query, date, event, items); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// All returns every aggregation row, oldest date first.
func (s *Store) All(ctx context.Context) ([]DailyEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, event, total_events, total_items FROM daily_events ORDER BY date, event`)
	if err != nil {
		return nil, fmt.Errorf("query daily events: %w", err)
	}
	defer rows.Close()

	var out []DailyEvent
	for rows.Next() {
		var rec DailyEvent
		if err := rows.Scan(&rec.Date, &rec.Event, &rec.TotalEvents, &rec.TotalItems); err != nil {
			return nil, fmt.Errorf("scan daily event row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
