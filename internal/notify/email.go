package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"admission/internal/platform/config"
	"admission/internal/registration/models"
)

// sendMailFunc matches smtp.SendMail; injectable for tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email delivers notifications over SMTP.
type Email struct {
	cfg  config.EmailChannel
	send sendMailFunc
}

// NewEmail constructs the SMTP channel.
func NewEmail(cfg config.EmailChannel) *Email {
	return &Email{cfg: cfg, send: smtp.SendMail}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, msg Message) error {
	to := msg.Registration.PersonalData.Email
	if to == "" {
		return fmt.Errorf("registration %s has no email address", msg.Registration.Number)
	}

	subject, body := emailContent(msg)
	raw := buildMIME(e.cfg.From, to, subject, body)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	if err := e.send(addr, auth, e.cfg.From, []string{to}, raw); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

func emailContent(msg Message) (subject, body string) {
	reg := msg.Registration
	name := reg.PersonalData.FullName

	switch msg.Kind {
	case KindConfirmation:
		subject = fmt.Sprintf("Registration %s received", reg.Number)
		body = fmt.Sprintf(
			"Dear %s,\n\nYour registration has been submitted and is awaiting review.\n\nRegistration number: %s\n\nKeep this number for tracking your application status.\n",
			name, reg.Number)
	case KindStatusUpdate:
		subject = fmt.Sprintf("Registration %s: %s", reg.Number, reg.Status)
		body = fmt.Sprintf("Dear %s,\n\n%s\n", name, statusLine(reg.Status))
		if msg.Notes != "" {
			body += fmt.Sprintf("\nReviewer notes: %s\n", msg.Notes)
		}
	case KindReminder:
		subject = fmt.Sprintf("Registration %s is still incomplete", reg.Number)
		body = fmt.Sprintf(
			"Dear %s,\n\nYour registration %s has not been submitted yet. Please complete the remaining steps and upload the required documents to finish your application.\n",
			name, reg.Number)
	default:
		subject = fmt.Sprintf("Registration %s", reg.Number)
		body = fmt.Sprintf("Dear %s,\n\nThere is an update on your registration %s.\n", name, reg.Number)
	}
	return subject, body
}

func statusLine(status models.Status) string {
	switch status {
	case models.StatusUnderReview:
		return "Your registration is now under review."
	case models.StatusApproved:
		return "Congratulations! Your registration has been approved. Further enrollment instructions will follow."
	case models.StatusRejected:
		return "We regret to inform you that your registration was not accepted."
	case models.StatusWaitlisted:
		return "Your registration has been placed on the waiting list. We will contact you when a seat becomes available."
	default:
		return fmt.Sprintf("Your registration status changed to %s.", status)
	}
}

func buildMIME(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
