package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission/internal/platform/config"
	"admission/internal/registration/models"
)

func TestEmail_SendBuildsMessage(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	e := NewEmail(config.EmailChannel{
		Host: "smtp.example.com",
		Port: 587,
		From: "noreply@school.example",
	})
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	reg := newTestRegistration()
	reg.Status = models.StatusApproved
	err := e.Send(context.Background(), Message{Kind: KindStatusUpdate, Registration: reg, Notes: "bring originals"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@school.example", gotFrom)
	assert.Equal(t, []string{"siti@example.com"}, gotTo)

	raw := string(gotMsg)
	assert.Contains(t, raw, "Subject: Registration MTS-2026-0001: Approved")
	assert.Contains(t, raw, "Dear Siti Rahma")
	assert.Contains(t, raw, "approved")
	assert.Contains(t, raw, "Reviewer notes: bring originals")
}

func TestEmail_SendWithoutAddress(t *testing.T) {
	e := NewEmail(config.EmailChannel{})
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	reg := newTestRegistration()
	reg.PersonalData.Email = ""
	err := e.Send(context.Background(), Message{Kind: KindConfirmation, Registration: reg})
	assert.Error(t, err)
}

func TestEmailContent_PerKind(t *testing.T) {
	reg := newTestRegistration()

	subject, body := emailContent(Message{Kind: KindConfirmation, Registration: reg})
	assert.Equal(t, "Registration MTS-2026-0001 received", subject)
	assert.Contains(t, body, "awaiting review")

	reg.Status = models.StatusWaitlisted
	subject, body = emailContent(Message{Kind: KindStatusUpdate, Registration: reg})
	assert.Contains(t, subject, "Waitlisted")
	assert.Contains(t, body, "waiting list")

	subject, body = emailContent(Message{Kind: KindReminder, Registration: reg})
	assert.Contains(t, subject, "incomplete")
	assert.Contains(t, body, "has not been submitted")
	assert.False(t, strings.Contains(body, "%!"), "formatting verbs must all be bound")
}
