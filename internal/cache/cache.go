// Package cache reads meeting records out of Granola's local cache file.
// The format is owned by the Granola app; this reader only pulls out the
// handful of fields the mailer needs and stays deliberately tolerant of
// everything else.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/nathanEV/granola-mailer/internal/models"
)

// ErrUnavailable is returned when the cache file cannot be read or parsed at
// the top level. Runs abort on it without touching sent state.
var ErrUnavailable = errors.New("granola cache unavailable")

type Reader struct {
	path string
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the cache file location this reader was built with.
func (r *Reader) Path() string {
	return r.path
}

// envelope matches cache-v3.json, where the payload is usually a JSON
// document re-encoded as a string under the "cache" key.
type envelope struct {
	Cache json.RawMessage `json:"cache"`
}

type cacheState struct {
	State struct {
		Documents   map[string]json.RawMessage `json:"documents"`
		Transcripts map[string][]segment       `json:"transcripts"`
	} `json:"state"`
}

type document struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	NotesMarkdown string `json:"notes_markdown"`
	NotesPlain    string `json:"notes_plain"`
}

type segment struct {
	Text           string `json:"text"`
	Source         string `json:"source"`
	StartTimestamp string `json:"start_timestamp"`
}

// Meetings loads every meeting in the cache, sorted by last update (oldest
// first). Individual documents that fail to decode are skipped; only a
// missing or structurally broken file is an error.
func (r *Reader) Meetings() ([]models.Meeting, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	payload, err := unwrap(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var state cacheState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	meetings := make([]models.Meeting, 0, len(state.State.Documents))
	for key, raw := range state.State.Documents {
		var doc document
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		if doc.ID == "" {
			doc.ID = key
		}
		if doc.ID == "" {
			continue
		}

		m := models.Meeting{
			ID:        doc.ID,
			Title:     doc.Title,
			CreatedAt: parseTime(doc.CreatedAt),
			UpdatedAt: parseTime(doc.UpdatedAt),
			Notes:     doc.NotesMarkdown,
		}
		if m.Notes == "" {
			m.Notes = doc.NotesPlain
		}
		// Documents written before the meeting starts may miss updated_at;
		// fall back so the record does not look infinitely old.
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = m.CreatedAt
		}

		for _, seg := range state.State.Transcripts[doc.ID] {
			m.Transcript = append(m.Transcript, models.Segment{
				Text:      seg.Text,
				Source:    seg.Source,
				StartedAt: parseTime(seg.StartTimestamp),
			})
		}

		meetings = append(meetings, m)
	}

	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].UpdatedAt.Equal(meetings[j].UpdatedAt) {
			return meetings[i].ID < meetings[j].ID
		}
		return meetings[i].UpdatedAt.Before(meetings[j].UpdatedAt)
	})

	return meetings, nil
}

// unwrap peels the double encoding: cache-v3.json stores the real document
// re-encoded as a string, but already-decoded payloads show up in backups
// and tests, so both are accepted.
func unwrap(data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if len(env.Cache) == 0 {
		return data, nil
	}
	if env.Cache[0] == '"' {
		var inner string
		if err := json.Unmarshal(env.Cache, &inner); err != nil {
			return nil, err
		}
		return []byte(inner), nil
	}
	return env.Cache, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
