package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unclebandit/smart-mailer/internal/logger"
)

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 2 * time.Second
)

// Transport sends one message with a bounded retry budget. Failure after the
// budget is a normal outcome reported as (false, lastErr), never a panic.
type Transport struct {
	sender         Sender
	maxAttempts    int
	initialBackoff time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	log            *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

func WithMaxAttempts(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

func WithInitialBackoff(d time.Duration) Option {
	return func(t *Transport) {
		if d >= 0 {
			t.initialBackoff = d
		}
	}
}

// WithSleep replaces the timed wait used between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Transport) {
		if fn != nil {
			t.sleep = fn
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTransport wraps sender with retry and exponential backoff.
func NewTransport(sender Sender, opts ...Option) *Transport {
	t := &Transport{
		sender:         sender,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		sleep:          Sleep,
		log:            logger.NewNope(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send delivers htmlBody to recipient as senderAddress. Waits between attempts
// are initialBackoff, 2*initialBackoff, 4*initialBackoff, ...
func (t *Transport) Send(ctx context.Context, creds Credentials, recipient, subject, htmlBody string) (bool, error) {
	msg := Message{From: creds.Address, To: recipient, Subject: subject, HTML: htmlBody}
	if err := msg.Validate(); err != nil {
		return false, err
	}

	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		lastErr = t.sender.Send(ctx, creds, msg)
		if lastErr == nil {
			t.log.Info("email sent",
				slog.String("provider", t.sender.Name()),
				slog.String("recipient", recipient),
				slog.Int("attempt", attempt),
			)
			return true, nil
		}

		t.log.Warn("email attempt failed",
			slog.String("provider", t.sender.Name()),
			slog.String("recipient", recipient),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", t.maxAttempts),
			slog.Any("error", lastErr),
		)

		if IsPermanent(lastErr) || ctx.Err() != nil || attempt == t.maxAttempts {
			break
		}

		delay := t.backoff(attempt)
		if err := t.sleep(ctx, delay); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	t.log.Error("email not sent",
		slog.String("provider", t.sender.Name()),
		slog.String("recipient", recipient),
		slog.Any("error", lastErr),
	)
	return false, fmt.Errorf("%w: %w", ErrSendFailed, lastErr)
}

func (t *Transport) backoff(attempt int) time.Duration {
	return t.initialBackoff << (attempt - 1)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
