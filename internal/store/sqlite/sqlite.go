// Package sqlite persists sent state in a SQLite database. It is the
// alternative to the JSON state file for setups that already keep tooling
// state in SQLite; the database handles its own locking.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nathanEV/granola-mailer/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sent_meetings (
	meeting_id TEXT PRIMARY KEY,
	sent_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the sent-state database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) IsSent(id string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM sent_meetings WHERE meeting_id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query sent state: %w", err)
	}
	return true, nil
}

func (s *Store) MarkSent(id string, at time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO sent_meetings (meeting_id, sent_at) VALUES (?, ?) ON CONFLICT(meeting_id) DO NOTHING",
		id, at.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record send for %s: %w", id, err)
	}
	return nil
}

func (s *Store) Sent() (map[string]time.Time, error) {
	rows, err := s.db.Query("SELECT meeting_id, sent_at FROM sent_meetings")
	if err != nil {
		return nil, fmt.Errorf("failed to list sent meetings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan sent row: %w", err)
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp for %s: %v", store.ErrCorrupt, id, err)
		}
		out[id] = at
	}
	return out, rows.Err()
}

func (s *Store) LastRun() (time.Time, error) {
	var raw string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'last_run'").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last run: %w", err)
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad last_run: %v", store.ErrCorrupt, err)
	}
	return at, nil
}

func (s *Store) SetLastRun(at time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES ('last_run', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		at.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record last run: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
