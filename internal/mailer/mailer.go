// Package mailer implements the completion detector and notifier: one run
// loads meetings from the cache, decides which ones have finished, and
// emails each at most once.
//
// Granola never records when a meeting ends, so completion is a heuristic:
// a meeting counts as done once its last update is at least the quiet
// period old. Meetings whose last update is older than the lookback window
// age out silently; this is a near-real-time notifier, not a backfill tool.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nathanEV/granola-mailer/internal/config"
	"github.com/nathanEV/granola-mailer/internal/export"
	"github.com/nathanEV/granola-mailer/internal/models"
	"github.com/nathanEV/granola-mailer/internal/notify"
	"github.com/nathanEV/granola-mailer/internal/store"
)

var (
	// ErrConfigMissing is returned before any cache read when a setting
	// required for sending is absent.
	ErrConfigMissing = errors.New("required configuration missing")

	// ErrMeetingNotFound is returned when --force names an id no cached
	// meeting matches.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrAmbiguousID is returned when a --force prefix matches more than
	// one meeting. Emails cannot be unsent, so a guess is never made.
	ErrAmbiguousID = errors.New("meeting id prefix is ambiguous")

	// ErrAlreadySent is returned when --force names an already-sent meeting
	// and --resend was not given.
	ErrAlreadySent = errors.New("meeting already sent")
)

// MeetingSource provides the meeting records for one run.
type MeetingSource interface {
	Meetings() ([]models.Meeting, error)
}

// Options control one invocation.
type Options struct {
	// DryRun logs what would be sent without sending or mutating state.
	DryRun bool
	// ForceID sends one meeting (matched by full id or unique prefix)
	// regardless of the timing filter.
	ForceID string
	// Resend lets ForceID re-deliver a meeting that was already sent.
	Resend bool
}

// Summary reports what one run did.
type Summary struct {
	Checked  int
	Eligible int
	Sent     int
	Failed   int
}

// Mailer wires the run together. Store, Sender, and Now are injected so the
// detection logic can be exercised hermetically in tests.
type Mailer struct {
	Source MeetingSource
	Store  store.Store
	Sender notify.Sender
	Config *config.Config
	Log    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Run performs one poll cycle. Individual send failures are logged and
// skipped without failing the run; only cache, state, and config problems
// return an error.
func (m *Mailer) Run(ctx context.Context, opts Options) (Summary, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	log := m.Log.With("run_id", uuid.NewString()[:8])

	dryRun := opts.DryRun
	if !m.Config.EmailEnabled && !dryRun {
		log.Info("EMAIL_ENABLED is false, running as dry run")
		dryRun = true
	}

	// Config problems abort before anything is read from disk.
	if !dryRun {
		if err := ValidateSendConfig(m.Config); err != nil {
			return Summary{}, err
		}
	}

	meetings, err := m.Source.Meetings()
	if err != nil {
		return Summary{}, err
	}
	log.Debug("cache loaded", "meetings", len(meetings))

	var toSend []models.Meeting
	if opts.ForceID != "" {
		target, err := findMeeting(meetings, opts.ForceID)
		if err != nil {
			return Summary{}, err
		}
		sent, err := m.Store.IsSent(target.ID)
		if err != nil {
			return Summary{}, err
		}
		if sent && !opts.Resend {
			return Summary{}, fmt.Errorf("%w: %s (use --resend to send again)", ErrAlreadySent, target.ID)
		}
		toSend = []models.Meeting{*target}
	} else {
		toSend, err = m.eligible(meetings, now())
		if err != nil {
			return Summary{}, err
		}
	}

	// Oldest first, so delivery roughly follows meeting order.
	sort.SliceStable(toSend, func(i, j int) bool {
		return toSend[i].UpdatedAt.Before(toSend[j].UpdatedAt)
	})

	summary := Summary{Checked: len(meetings), Eligible: len(toSend)}
	if len(toSend) == 0 {
		log.Info("no new meetings to email", "checked", summary.Checked)
		return summary, nil
	}

	for i := range toSend {
		meeting := &toSend[i]
		subject := export.Subject(meeting, m.Config.Timezone)

		if dryRun {
			log.Info("would send",
				"meeting_id", meeting.ShortID(),
				"title", meeting.DisplayTitle(),
				"updated_at", meeting.UpdatedAt,
				"subject", subject,
			)
			summary.Sent++
			continue
		}

		msg := notify.Message{
			To:      m.Config.EmailTo,
			From:    m.Config.EmailFrom,
			Subject: subject,
			Body:    export.Body(meeting, m.Config.Timezone),
		}
		if err := m.Sender.Send(ctx, msg); err != nil {
			// Skip and carry on; the next scheduled run retries anything
			// still inside the lookback window.
			log.Error("send failed",
				"meeting_id", meeting.ShortID(),
				"title", meeting.DisplayTitle(),
				"updated_at", meeting.UpdatedAt,
				"channel", m.Sender.Name(),
				"error", err,
			)
			summary.Failed++
			continue
		}

		// Record the send before touching the next meeting, so an
		// interrupted run never repeats a delivery.
		if err := m.Store.MarkSent(meeting.ID, now()); err != nil {
			return summary, fmt.Errorf("sent %s but failed to record it: %w", meeting.ID, err)
		}
		log.Info("sent",
			"meeting_id", meeting.ShortID(),
			"title", meeting.DisplayTitle(),
			"channel", m.Sender.Name(),
		)
		summary.Sent++
	}

	if !dryRun && summary.Sent > 0 {
		if err := m.Store.SetLastRun(now()); err != nil {
			return summary, err
		}
	}

	log.Info("run complete",
		"checked", summary.Checked,
		"eligible", summary.Eligible,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"dry_run", dryRun,
	)
	return summary, nil
}

// ValidateSendConfig reports whether cfg carries everything the configured
// channel needs to deliver. Callers that build a transport must check this
// first, so a missing credential fails as ErrConfigMissing instead of as a
// transport error from a half-constructed client.
func ValidateSendConfig(cfg *config.Config) error {
	switch cfg.NotifyChannel {
	case config.ChannelTelegram:
		if cfg.TelegramBotToken == "" {
			return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN", ErrConfigMissing)
		}
		if cfg.TelegramChatID == 0 {
			return fmt.Errorf("%w: TELEGRAM_CHAT_ID", ErrConfigMissing)
		}
	default:
		if cfg.EmailTo == "" {
			return fmt.Errorf("%w: EMAIL_TO", ErrConfigMissing)
		}
		if cfg.EmailFrom == "" {
			return fmt.Errorf("%w: EMAIL_FROM", ErrConfigMissing)
		}
	}
	return nil
}

// eligible applies the completion heuristic: quiet period elapsed, still
// inside the lookback window (both boundaries inclusive), transcript
// present, not already sent.
func (m *Mailer) eligible(meetings []models.Meeting, now time.Time) ([]models.Meeting, error) {
	var out []models.Meeting
	for i := range meetings {
		meeting := &meetings[i]
		if meeting.UpdatedAt.IsZero() {
			continue
		}
		age := now.Sub(meeting.UpdatedAt)
		if age < m.Config.QuietPeriod() || age > m.Config.Lookback() {
			continue
		}
		if !meeting.HasTranscript() {
			continue
		}
		sent, err := m.Store.IsSent(meeting.ID)
		if err != nil {
			return nil, err
		}
		if sent {
			continue
		}
		out = append(out, *meeting)
	}
	return out, nil
}

// findMeeting resolves a full id or unique prefix, the way the original
// --force flag matched. An ambiguous prefix is an error rather than a
// first-match guess.
func findMeeting(meetings []models.Meeting, id string) (*models.Meeting, error) {
	var match *models.Meeting
	for i := range meetings {
		if meetings[i].ID == id {
			return &meetings[i], nil
		}
		if strings.HasPrefix(meetings[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
			}
			match = &meetings[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrMeetingNotFound, id)
	}
	return match, nil
}
