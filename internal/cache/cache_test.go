package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// innerCache is the decoded document shape as granola writes it.
const innerCache = `{
	"state": {
		"documents": {
			"doc-1": {
				"id": "doc-1",
				"title": "Weekly Sync",
				"created_at": "2026-08-30T14:00:00Z",
				"updated_at": "2026-08-30T14:45:00Z",
				"notes_markdown": "- shipped it"
			},
			"doc-2": {
				"id": "doc-2",
				"title": "Older Meeting",
				"created_at": "2026-08-30T09:00:00Z",
				"updated_at": "2026-08-30T09:30:00Z"
			}
		},
		"transcripts": {
			"doc-1": [
				{"text": "hello", "source": "microphone", "start_timestamp": "2026-08-30T14:00:05Z"}
			]
		}
	}
}`

func writeCache(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache-v3.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMeetingsDoubleEncodedEnvelope(t *testing.T) {
	// The real cache file stores the document re-encoded as a JSON string.
	env, err := json.Marshal(map[string]string{"cache": innerCache})
	if err != nil {
		t.Fatal(err)
	}

	r := NewReader(writeCache(t, string(env)))
	meetings, err := r.Meetings()
	if err != nil {
		t.Fatalf("Meetings() error = %v", err)
	}

	if len(meetings) != 2 {
		t.Fatalf("got %d meetings, want 2", len(meetings))
	}
	// Sorted oldest update first.
	if meetings[0].ID != "doc-2" || meetings[1].ID != "doc-1" {
		t.Errorf("order = [%s %s], want [doc-2 doc-1]", meetings[0].ID, meetings[1].ID)
	}

	m := meetings[1]
	if m.Title != "Weekly Sync" {
		t.Errorf("title = %q", m.Title)
	}
	if m.Notes != "- shipped it" {
		t.Errorf("notes = %q", m.Notes)
	}
	if !m.HasTranscript() {
		t.Error("doc-1 should have a transcript")
	}
	if meetings[0].HasTranscript() {
		t.Error("doc-2 should have no transcript")
	}
}

func TestMeetingsPlainPayload(t *testing.T) {
	// Already-decoded payloads (backups, fixtures) are accepted as-is.
	r := NewReader(writeCache(t, innerCache))
	meetings, err := r.Meetings()
	if err != nil {
		t.Fatalf("Meetings() error = %v", err)
	}
	if len(meetings) != 2 {
		t.Errorf("got %d meetings, want 2", len(meetings))
	}
}

func TestMeetingsMissingFile(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "nope.json"))
	_, err := r.Meetings()
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestMeetingsCorruptFile(t *testing.T) {
	r := NewReader(writeCache(t, "{definitely not json"))
	_, err := r.Meetings()
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestMalformedDocumentSkipped(t *testing.T) {
	payload := `{
		"state": {
			"documents": {
				"good": {"id": "good", "title": "Fine", "updated_at": "2026-08-30T14:00:00Z"},
				"bad": 42
			},
			"transcripts": {}
		}
	}`
	r := NewReader(writeCache(t, payload))
	meetings, err := r.Meetings()
	if err != nil {
		t.Fatalf("Meetings() error = %v", err)
	}
	if len(meetings) != 1 || meetings[0].ID != "good" {
		t.Errorf("got %+v, want just the good document", meetings)
	}
}

func TestUpdatedAtFallsBackToCreatedAt(t *testing.T) {
	payload := `{
		"state": {
			"documents": {
				"d": {"id": "d", "title": "No updates yet", "created_at": "2026-08-30T14:00:00Z"}
			},
			"transcripts": {}
		}
	}`
	r := NewReader(writeCache(t, payload))
	meetings, err := r.Meetings()
	if err != nil {
		t.Fatalf("Meetings() error = %v", err)
	}
	if meetings[0].UpdatedAt.IsZero() || !meetings[0].UpdatedAt.Equal(meetings[0].CreatedAt) {
		t.Errorf("UpdatedAt = %v, want CreatedAt fallback", meetings[0].UpdatedAt)
	}
}
