package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/unclebandit/smart-mailer/internal/model"
)

// RetryHeader counts redeliveries of an outcome message.
const RetryHeader = "x-retry-count"

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// OutcomePublisher records delivery outcomes by publishing them to a durable
// queue. cmd/worker consumes that queue and writes the email log.
type OutcomePublisher struct {
	mu    sync.Mutex
	ch    Channel
	conn  *amqp.Connection
	queue string
}

// DialOutcomePublisher connects to the broker and declares the outcome queue.
func DialOutcomePublisher(url, queueName string) (*OutcomePublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := NewOutcomePublisher(ch, queueName)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewOutcomePublisher(ch Channel, queueName string) (*OutcomePublisher, error) {
	if _, err := DeclareOutcomeQueue(ch, queueName); err != nil {
		return nil, err
	}
	return &OutcomePublisher{ch: ch, queue: queueName}, nil
}

// DeclareOutcomeQueue declares the durable queue shared by publisher and worker.
func DeclareOutcomeQueue(ch Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return q, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return q, nil
}

// Record publishes one outcome as a persistent JSON message.
func (p *OutcomePublisher) Record(ctx context.Context, o model.DeliveryOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.SentAt.IsZero() {
		o.SentAt = time.Now().UTC()
	}
	body, err := json.Marshal(o)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    o.SentAt,
		Headers:      amqp.Table{RetryHeader: int32(0)},
		Body:         body,
	})
}

func (p *OutcomePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
