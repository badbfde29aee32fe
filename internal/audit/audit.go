// Package audit records lifecycle events: who did what to which
// registration, and when. Events fan out to pluggable sinks; emitting
// is non-blocking so domain operations never wait on audit plumbing.
package audit

import (
	"context"
	"time"
)

// Action identifies the audited operation.
type Action string

const (
	ActionRegistrationCreated   Action = "registration_created"
	ActionRegistrationSubmitted Action = "registration_submitted"
	ActionDecisionApplied       Action = "decision_applied"
	ActionRemindersSent         Action = "reminders_sent"
	ActionAdminLogin            Action = "admin_login"
	ActionAdminCreated          Action = "admin_created"
	ActionPasswordChanged       Action = "password_changed"
)

// Event is one audit record. Actor is empty for applicant-initiated
// operations; Subject is the registration number or admin username the
// action touched.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Actor     string            `json:"actor,omitempty"`
	Action    Action            `json:"action"`
	Subject   string            `json:"subject"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Sink persists or forwards events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
