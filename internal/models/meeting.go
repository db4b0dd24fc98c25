package models

import (
	"strings"
	"time"
)

// Meeting is one record from the Granola cache. Granola never writes an
// explicit end time, so UpdatedAt is the only completion signal available.
type Meeting struct {
	ID         string
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Notes      string
	Transcript []Segment
}

// Segment is a single transcript entry.
type Segment struct {
	Text      string
	Source    string // "microphone" or "system"
	StartedAt time.Time
}

// HasTranscript reports whether the meeting carries any transcript text.
func (m *Meeting) HasTranscript() bool {
	for _, s := range m.Transcript {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

// DisplayTitle returns the meeting title, or a placeholder when Granola
// stored the meeting without one.
func (m *Meeting) DisplayTitle() string {
	if strings.TrimSpace(m.Title) == "" {
		return "Untitled Meeting"
	}
	return m.Title
}

// ShortID returns a truncated id suitable for log lines.
func (m *Meeting) ShortID() string {
	if len(m.ID) <= 8 {
		return m.ID
	}
	return m.ID[:8]
}
