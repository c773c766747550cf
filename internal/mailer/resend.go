package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// ResendSender delivers through the Resend HTTP API. The per-request sender
// secret is used as the API key, so each batch authenticates as its caller.
type ResendSender struct {
	newClient func(apiKey string) *resend.Client
}

func NewResendSender() *ResendSender {
	return &ResendSender{newClient: resend.NewClient}
}

func (s *ResendSender) Name() string {
	return "resend"
}

func (s *ResendSender) Send(ctx context.Context, creds Credentials, msg Message) error {
	if err := msg.Validate(); err != nil {
		return Permanent(err)
	}
	if creds.Secret == "" {
		return Permanent(fmt.Errorf("resend: missing API key"))
	}

	client := s.newClient(creds.Secret)
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if _, err := client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	return nil
}
