// Package mailer delivers single rendered messages through an external relay
// using credentials supplied by the caller.
package mailer

import (
	"context"
	"errors"
)

// Credentials authenticate one sender against the relay. They are supplied per
// batch and are never persisted.
type Credentials struct {
	Address string
	Secret  string
}

// Message is a fully rendered email ready for the relay.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Validate checks the fields every provider needs.
func (m Message) Validate() error {
	if m.To == "" {
		return ErrNoRecipient
	}
	if m.Subject == "" {
		return ErrNoSubject
	}
	if m.HTML == "" {
		return ErrNoContent
	}
	return nil
}

// Sender performs exactly one delivery attempt over a fresh session.
type Sender interface {
	Name() string
	Send(ctx context.Context, creds Credentials, msg Message) error
}

var (
	ErrNoRecipient = errors.New("email must have a recipient")
	ErrNoSubject   = errors.New("email must have a subject")
	ErrNoContent   = errors.New("email must have HTML content")
	ErrSendFailed  = errors.New("failed to send email")
)

// permanentError marks a failure that retrying cannot fix (bad credentials,
// rejected recipient).
type permanentError struct{ error }

func (e *permanentError) Unwrap() error { return e.error }

// Permanent wraps err so the retrying transport gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
