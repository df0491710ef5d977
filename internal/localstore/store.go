// Package localstore is a SQLite implementation of the participant, history and
// network log stores, used for single-node deployments and tests.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT,
		full_name TEXT NOT NULL DEFAULT '',
		roll_number TEXT NOT NULL DEFAULT '',
		final_focus_score REAL NOT NULL DEFAULT 100,
		violations_count INTEGER NOT NULL DEFAULT 0,
		network_issue_seconds REAL NOT NULL DEFAULT 0,
		last_heartbeat INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_participants_session ON participants(session_id)`,
	`CREATE TABLE IF NOT EXISTS focus_events (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		focus_score REAL NOT NULL,
		is_looking_at_screen INTEGER,
		is_tab_active INTEGER,
		is_window_visible INTEGER,
		current_url TEXT,
		network_stable INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_focus_events_participant ON focus_events(participant_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS violations (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL,
		type TEXT NOT NULL,
		url TEXT,
		duration_seconds REAL,
		camera_mode TEXT,
		occurred_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_violations_participant ON violations(participant_id, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS network_logs (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('offline', 'resolved')),
		started_at INTEGER NOT NULL,
		resolved_at INTEGER,
		duration_seconds REAL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_network_logs_participant ON network_logs(participant_id, started_at)`,
}

// Store is a SQLite database holding every focus table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at dsn, applies pragmas and creates the schema. An
// in-memory database can be opened with "file:name?mode=memory&cache=shared".
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = "file:proctor.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps pragmas and in-memory databases stable.
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}
