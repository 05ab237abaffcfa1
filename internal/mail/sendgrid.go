package mail

import (
	"context"
	"fmt"

	sendgrid "github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ProviderError is a rejection reported by the mail API.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mail provider returned status %d: %s", e.StatusCode, e.Body)
}

type SendGridMailer struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridMailer(cfg Config) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(cfg.SendGridKey),
		from:     cfg.From,
		fromName: cfg.FromName,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	email := sgmail.NewSingleEmail(
		sgmail.NewEmail(m.fromName, m.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)

	response, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return &ProviderError{StatusCode: response.StatusCode, Body: response.Body}
	}
	return nil
}
