package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"admission/internal/platform/config"
)

// SMS delivers notifications through the Twilio messages API.
type SMS struct {
	cfg    config.SMSChannel
	client *http.Client
}

// NewSMS constructs the SMS channel.
func NewSMS(cfg config.SMSChannel) *SMS {
	return &SMS{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SMS) Name() string { return "sms" }

func (s *SMS) Send(ctx context.Context, msg Message) error {
	to := msg.Registration.PersonalData.PhoneNumber
	if to == "" {
		return fmt.Errorf("registration %s has no phone number", msg.Registration.Number)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.From)
	form.Set("Body", smsBody(msg))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.APIBase, "/"), s.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func smsBody(msg Message) string {
	reg := msg.Registration
	switch msg.Kind {
	case KindConfirmation:
		return fmt.Sprintf("Registration %s received and awaiting review.", reg.Number)
	case KindStatusUpdate:
		return fmt.Sprintf("Registration %s status: %s.", reg.Number, reg.Status)
	case KindReminder:
		return fmt.Sprintf("Registration %s is incomplete. Please finish your application.", reg.Number)
	default:
		return fmt.Sprintf("Update on registration %s.", reg.Number)
	}
}
