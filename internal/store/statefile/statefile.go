// Package statefile persists sent state as a small JSON file. The on-disk
// shape is compatible with state files written by the original Python
// automation: ids live in "emailed_ids", and "emailed_at" carries the send
// timestamps this implementation adds.
package statefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/nathanEV/granola-mailer/internal/store"
)

type fileState struct {
	EmailedIDs []string          `json:"emailed_ids"`
	EmailedAt  map[string]string `json:"emailed_at,omitempty"`
	LastRun    string            `json:"last_run,omitempty"`
}

// Store keeps the sent set in memory and rewrites the file on every
// mutation. Writes go through a temp file in the same directory followed by
// a rename, so a crash mid-write can never truncate existing state.
type Store struct {
	path string
	lock *flock.Flock

	sent    map[string]time.Time
	lastRun time.Time
}

// Open loads the state file at path, creating empty state when the file
// does not exist yet. A sibling .lock file is held for the lifetime of the
// store; a second process opening the same path gets store.ErrLocked
// immediately rather than blocking under launchd.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire state lock: %w", err)
	}
	if !locked {
		return nil, store.ErrLocked
	}

	s := &Store{
		path: path,
		lock: lock,
		sent: make(map[string]time.Time),
	}
	if err := s.load(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil // first run
	}
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}

	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		return fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}

	for _, id := range fs.EmailedIDs {
		s.sent[id] = time.Time{}
	}
	for id, raw := range fs.EmailedAt {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("%w: bad timestamp for %s: %v", store.ErrCorrupt, id, err)
		}
		s.sent[id] = at
	}
	if fs.LastRun != "" {
		// The Python version wrote last_run with a timezone offset; any
		// RFC3339 form is accepted.
		at, err := time.Parse(time.RFC3339, fs.LastRun)
		if err != nil {
			return fmt.Errorf("%w: bad last_run: %v", store.ErrCorrupt, err)
		}
		s.lastRun = at
	}
	return nil
}

func (s *Store) IsSent(id string) (bool, error) {
	_, ok := s.sent[id]
	return ok, nil
}

func (s *Store) MarkSent(id string, at time.Time) error {
	s.sent[id] = at
	return s.flush()
}

func (s *Store) Sent() (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(s.sent))
	for id, at := range s.sent {
		out[id] = at
	}
	return out, nil
}

func (s *Store) LastRun() (time.Time, error) {
	return s.lastRun, nil
}

func (s *Store) SetLastRun(at time.Time) error {
	s.lastRun = at
	return s.flush()
}

// Close releases the state lock. State itself is already on disk; flush
// happens on every mutation, not here.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

func (s *Store) flush() error {
	fs := fileState{
		EmailedIDs: make([]string, 0, len(s.sent)),
		EmailedAt:  make(map[string]string, len(s.sent)),
	}
	for id, at := range s.sent {
		fs.EmailedIDs = append(fs.EmailedIDs, id)
		if !at.IsZero() {
			fs.EmailedAt[id] = at.Format(time.RFC3339)
		}
	}
	// Stable order keeps rewrites diffable.
	sort.Strings(fs.EmailedIDs)
	if !s.lastRun.IsZero() {
		fs.LastRun = s.lastRun.Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(fs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
