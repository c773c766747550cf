package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/smart-mailer/internal/logger"
)

var (
	// ErrQueueFull is returned by Publish when the buffer has no room.
	ErrQueueFull   = errors.New("queue: full")
	ErrQueueClosed = errors.New("queue: closed")
)

// Handler processes one payload. Returning an error requeues the payload
// in-process until MaxRetries is exhausted.
type Handler func(ctx context.Context, payload any) error

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler Handler) error
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

// InMemoryQueue is a bounded in-memory queue drained by a fixed pool of
// workers. Publish never blocks: a full buffer is reported to the caller.
type InMemoryQueue struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	jobs     chan JobPayload
	closed   bool

	maxRetries int
	backoff    time.Duration
	log        *slog.Logger
}

type Option func(*InMemoryQueue)

func WithMaxRetries(n int) Option {
	return func(q *InMemoryQueue) {
		if n >= 0 {
			q.maxRetries = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(q *InMemoryQueue) { q.backoff = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(q *InMemoryQueue) {
		if l != nil {
			q.log = l
		}
	}
}

// NewInMemoryQueue creates a queue holding at most size pending jobs.
func NewInMemoryQueue(size int, opts ...Option) *InMemoryQueue {
	if size < 1 {
		size = 1
	}
	q := &InMemoryQueue{
		handlers:   make(map[string]Handler),
		jobs:       make(chan JobPayload, size),
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
		log:        logger.NewNope(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Subscribe registers the handler for a topic. One handler per topic.
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.handlers[topic]; ok {
		return fmt.Errorf("topic %s already has a subscriber", topic)
	}
	q.handlers[topic] = handler
	return nil
}

// Publish enqueues payload for topic without blocking.
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.handlers[topic]; !ok {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{Topic: topic, Payload: payload, MaxRetries: q.maxRetries}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of pending jobs.
func (q *InMemoryQueue) Len() int {
	return len(q.jobs)
}

// Run starts workers goroutines and blocks until ctx is cancelled or Close
// has been called and the buffer drained. In-flight handlers see ctx.
func (q *InMemoryQueue) Run(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job, ok := <-q.jobs:
					if !ok {
						return nil
					}
					q.processJob(ctx, job)
				}
			}
		})
	}
	err := g.Wait()
	if n := q.Len(); n > 0 {
		q.log.Warn("queue stopped with pending jobs", slog.Int("pending", n))
	}
	return err
}

// Close stops accepting new jobs. Workers exit once the buffer is empty.
func (q *InMemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(ctx context.Context, job JobPayload) {
	q.mu.RLock()
	handler := q.handlers[job.Topic]
	q.mu.RUnlock()

	for {
		err := q.safeHandle(ctx, handler, job.Payload)
		if err == nil {
			return // ACK
		}
		if ctx.Err() != nil {
			q.log.Warn("job interrupted", slog.String("topic", job.Topic), slog.Any("error", err))
			return
		}

		job.RetryCount++
		if job.RetryCount > job.MaxRetries {
			q.log.Error("job permanently failed",
				slog.String("topic", job.Topic),
				slog.Int("attempts", job.RetryCount),
				slog.Any("error", err),
			)
			return // No requeue
		}
		q.log.Warn("job failed, retrying",
			slog.String("topic", job.Topic),
			slog.Int("attempt", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries),
			slog.Any("error", err),
		)

		timer := time.NewTimer(time.Duration(job.RetryCount) * q.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (q *InMemoryQueue) safeHandle(ctx context.Context, handler Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, payload)
}
