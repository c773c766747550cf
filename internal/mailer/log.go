package mailer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogSender logs messages instead of sending them. Used for local runs.
type LogSender struct {
	Logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{Logger: logger}
}

func (l *LogSender) Name() string {
	return "log"
}

func (l *LogSender) Send(ctx context.Context, _ Credentials, msg Message) error {
	if err := msg.Validate(); err != nil {
		return Permanent(err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.Logger.InfoContext(ctx, "mailer: email logged (not sent)",
		"provider", "log",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"html_length", len(msg.HTML),
		"fake_message_id", uuid.NewString(),
	)
	return nil
}
