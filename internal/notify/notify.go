// Package notify delivers rendered meeting exports. The mailer only
// composes content; everything transport-specific lives behind Sender.
package notify

import "context"

// Message is one rendered notification.
type Message struct {
	To      string
	From    string
	Subject string
	Body    string
}

// Sender delivers a message through one channel. A returned error means the
// message was not delivered; the caller skips the record and retries it on
// the next scheduled run.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}
