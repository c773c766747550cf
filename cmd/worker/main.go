// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/streadway/amqp"

	"github.com/unclebandit/smart-mailer/internal/config"
	"github.com/unclebandit/smart-mailer/internal/db"
	"github.com/unclebandit/smart-mailer/internal/logger"
	"github.com/unclebandit/smart-mailer/internal/model"
	"github.com/unclebandit/smart-mailer/internal/queue"
	"github.com/unclebandit/smart-mailer/internal/repository"
)

const maxRetries = 3

var errMalformed = errors.New("malformed delivery outcome")

// outcomeStore is the part of the email log repository the worker writes to.
type outcomeStore interface {
	Insert(ctx context.Context, o *model.DeliveryOutcome) error
}

type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func main() {
	cfg := config.MustLoad()
	log := logger.NewWithSentry(logger.SentryConfig{DSN: cfg.SentryDSN, Environment: cfg.SentryEnvironment})
	defer sentry.Flush(2 * time.Second)

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped", slog.Any("error", err))
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultOptions, log)
	if err != nil {
		return err
	}
	defer conn.Close()
	repo := &repository.EmailLogRepository{DB: conn}

	broker, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	defer broker.Close()

	ch, err := broker.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	q, err := queue.DeclareOutcomeQueue(ch, cfg.AMQPQueue)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	log.Info("👷 Worker running, waiting for delivery outcomes...", slog.String("queue", q.Name))
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown requested")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			handleDelivery(ctx, d, ch, q.Name, repo, log)
		}
	}
}

// handleDelivery stores one outcome and settles the message. Failed inserts
// are republished with an incremented retry header until maxRetries is hit.
func handleDelivery(ctx context.Context, d amqp.Delivery, pub publisher, queueName string, repo outcomeStore, log *slog.Logger) {
	err := processDelivery(ctx, repo, d.Body)
	if err == nil {
		d.Ack(false) //nolint:errcheck
		return
	}

	if errors.Is(err, errMalformed) {
		log.Error("dropping invalid outcome", slog.Any("error", err))
		d.Ack(false) //nolint:errcheck
		return
	}

	retries := retryCount(d.Headers)
	if retries >= maxRetries {
		log.Error("❌ dropping outcome after retries", slog.Int("retries", retries), slog.Any("error", err))
		d.Ack(false) //nolint:errcheck
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[queue.RetryHeader] = int32(retries + 1)
	pubErr := pub.Publish("", queueName, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    d.Timestamp,
		Headers:      headers,
		Body:         d.Body,
	})
	if pubErr != nil {
		// Let the broker redeliver the original instead.
		log.Warn("republish failed, requeueing", slog.Any("error", pubErr))
		d.Nack(false, true) //nolint:errcheck
		return
	}
	log.Warn("outcome insert failed, retry scheduled", slog.Int("retry", retries+1), slog.Any("error", err))
	d.Ack(false) //nolint:errcheck
}

func processDelivery(ctx context.Context, repo outcomeStore, body []byte) error {
	var outcome model.DeliveryOutcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		return fmt.Errorf("%w: %w", errMalformed, err)
	}
	if outcome.MailerID == "" {
		return fmt.Errorf("%w: mailerId missing", errMalformed)
	}

	insertCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return repo.Insert(insertCtx, &outcome)
}

// retryCount reads the retry header, which may arrive as any integer width.
func retryCount(headers amqp.Table) int {
	switch v := headers[queue.RetryHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
