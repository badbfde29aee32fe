// Package notify delivers applicant-facing messages over email and SMS.
// Delivery is best effort end to end: workflow operations enqueue and
// move on, and a failed or dropped message never surfaces to the
// applicant's request.
package notify

import (
	"context"

	"admission/internal/registration/models"
)

// Kind selects the message template.
type Kind string

const (
	// KindConfirmation acknowledges a successful submission.
	KindConfirmation Kind = "confirmation"
	// KindStatusUpdate announces an administrator decision.
	KindStatusUpdate Kind = "status_update"
	// KindReminder nudges an applicant with a stale draft.
	KindReminder Kind = "reminder"
)

// Message is one queued notification. Registration is a snapshot owned
// by the dispatcher; callers must not mutate it after enqueueing.
type Message struct {
	Kind         Kind
	Registration *models.Registration
	Notes        string
}

// Channel delivers a message over one medium.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
