// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned when a mailer id does not resolve.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %q not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// IsCampaignNotFound reports whether err (or anything it wraps) is an ErrCampaignNotFound.
func IsCampaignNotFound(err error) bool {
	var nf *ErrCampaignNotFound
	return errors.As(err, &nf)
}

// Request rejection reasons surfaced to the caller of a batch submission.
const (
	ReasonSenderMissing     = "Sender Email Address missing"
	ReasonSenderInvalid     = "Invalid sender email address"
	ReasonSecretMissing     = "Sender Email Password missing"
	ReasonRecipientsMissing = "Recipient Details CSV File missing"
	ReasonSubjectMissing    = "Email Subject missing"
	ReasonTemplateMissing   = "HTML Content missing"
	ReasonNoRecipients      = "No recipient details found in CSV"
	ReasonMissingFields     = "Missing required fields"
	ReasonMailerIDMissing   = "Missing mailerId parameter"
)

// RequestError rejects a request before any work is started.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return e.Reason
}

func NewRequestError(reason string) error {
	return &RequestError{Reason: reason}
}

// IsRequestError reports whether err is a RequestError and returns it.
func IsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ParseError wraps a structurally malformed recipient table.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed recipient table: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
