// Package store tracks which meetings have already been emailed. The sent
// set is monotonic: once an id is recorded it stays recorded, which is what
// gives the mailer its at-most-once delivery guarantee.
package store

import (
	"errors"
	"time"
)

// ErrCorrupt is returned when persisted state exists but cannot be read.
// The mailer aborts on it rather than treating the state as empty, because
// an empty sent set would re-send every meeting still inside the lookback
// window.
var ErrCorrupt = errors.New("sent state corrupt")

// ErrLocked is returned when another invocation already holds the state.
// Overlapping scheduler runs fail fast instead of racing on the sent set.
var ErrLocked = errors.New("sent state locked by another process")

// Store is the sent-state persistence boundary. MarkSent must be durable
// before it returns: the mailer records each send immediately so an
// interrupted run never repeats a delivery.
type Store interface {
	IsSent(id string) (bool, error)
	MarkSent(id string, at time.Time) error
	Sent() (map[string]time.Time, error)
	LastRun() (time.Time, error)
	SetLastRun(at time.Time) error
	Close() error
}
