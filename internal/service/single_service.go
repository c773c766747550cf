// internal/service/single_service.go
package service

import (
	"context"
	"strings"

	appErrors "github.com/unclebandit/smart-mailer/internal/errors"
	"github.com/unclebandit/smart-mailer/internal/mailer"
)

// SingleRequest sends one message without batching, tracking or logging.
type SingleRequest struct {
	SenderAddress string `json:"senderEmailAddress"`
	SenderSecret  string `json:"senderEmailPassword"`
	Recipient     string `json:"receiverEmailAddress"`
	Subject       string `json:"subject"`
	HTML          string `json:"msg"`
}

type SingleService struct {
	Transport MailTransport
}

func (s *SingleService) Send(ctx context.Context, req SingleRequest) error {
	if strings.TrimSpace(req.SenderAddress) == "" || req.SenderSecret == "" ||
		strings.TrimSpace(req.Recipient) == "" || req.Subject == "" || req.HTML == "" {
		return appErrors.NewRequestError(appErrors.ReasonMissingFields)
	}

	creds := mailer.Credentials{Address: NormalizeEmail(req.SenderAddress), Secret: req.SenderSecret}
	ok, err := s.Transport.Send(ctx, creds, NormalizeEmail(req.Recipient), req.Subject, req.HTML)
	if !ok {
		if err == nil {
			err = mailer.ErrSendFailed
		}
		return err
	}
	return nil
}
