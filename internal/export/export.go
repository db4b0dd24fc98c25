// Package export renders a meeting into the email subject and markdown body.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/nathanEV/granola-mailer/internal/models"
)

// Subject formats the email subject line:
// "Granola Meeting: <title> - <YYYY-MM-DD>". The date comes from the
// meeting's start time in the configured timezone and is omitted when the
// cache carries no start time.
func Subject(m *models.Meeting, loc *time.Location) string {
	if m.CreatedAt.IsZero() {
		return fmt.Sprintf("Granola Meeting: %s", m.DisplayTitle())
	}
	return fmt.Sprintf("Granola Meeting: %s - %s", m.DisplayTitle(), m.CreatedAt.In(loc).Format("2006-01-02"))
}

// Body renders the meeting as a markdown document: header, metadata, the
// Granola notes when present, then the transcript with per-source speaker
// labels.
func Body(m *models.Meeting, loc *time.Location) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", m.DisplayTitle())
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Date:** %s\n", m.CreatedAt.In(loc).Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "**Meeting ID:** %s\n", m.ID)

	if strings.TrimSpace(m.Notes) != "" {
		b.WriteString("\n## Notes\n\n")
		b.WriteString(strings.TrimSpace(m.Notes))
		b.WriteString("\n")
	}

	if m.HasTranscript() {
		b.WriteString("\n## Transcript\n\n")
		for _, seg := range m.Transcript {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			label := speakerLabel(seg.Source)
			if seg.StartedAt.IsZero() {
				fmt.Fprintf(&b, "**%s:** %s\n\n", label, text)
			} else {
				fmt.Fprintf(&b, "**%s** (%s): %s\n\n", label, seg.StartedAt.In(loc).Format("15:04"), text)
			}
		}
	}

	return b.String()
}

// speakerLabel maps Granola's segment source to a readable label. The cache
// only distinguishes the local microphone from system audio.
func speakerLabel(source string) string {
	switch source {
	case "microphone":
		return "Me"
	case "system":
		return "Them"
	default:
		return "Speaker"
	}
}
