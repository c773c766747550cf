package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/smart-mailer/internal/mailer"
	"github.com/unclebandit/smart-mailer/internal/model"
	"github.com/unclebandit/smart-mailer/internal/queue"
)

// MockCampaignRepo keeps campaigns in memory.
type MockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]model.Campaign
	created   int
	nextID    int
	existsErr error
}

func newMockCampaignRepo(ids ...string) *MockCampaignRepo {
	m := &MockCampaignRepo{campaigns: map[string]model.Campaign{}}
	for _, id := range ids {
		m.campaigns[id] = model.Campaign{ID: id}
	}
	return m
}

func (m *MockCampaignRepo) Create(ctx context.Context) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	m.nextID++
	c := model.Campaign{ID: fmt.Sprintf("minted-%d", m.nextID), CreatedAt: time.Now()}
	m.campaigns[c.ID] = c
	return &c, nil
}

func (m *MockCampaignRepo) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &c, nil
}

func (m *MockCampaignRepo) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.campaigns[id]
	return ok, nil
}

func (m *MockCampaignRepo) ListAll(ctx context.Context) ([]model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Campaign{}
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	return out, nil
}

// MockDeliveryLog records outcomes in arrival order.
type MockDeliveryLog struct {
	mu       sync.Mutex
	outcomes []model.DeliveryOutcome
	failures int // number of Record calls to fail, -1 for always
}

func (m *MockDeliveryLog) Record(ctx context.Context, o model.DeliveryOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures != 0 {
		if m.failures > 0 {
			m.failures--
		}
		return errors.New("database unavailable")
	}
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *MockDeliveryLog) Outcomes() []model.DeliveryOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DeliveryOutcome(nil), m.outcomes...)
}

// MockTransport succeeds unless the recipient is listed in fail.
type MockTransport struct {
	mu    sync.Mutex
	fail  map[string]error
	sent  []sentMessage
	block chan struct{}
}

type sentMessage struct {
	Creds     mailer.Credentials
	Recipient string
	Subject   string
	HTML      string
}

func (m *MockTransport) Send(ctx context.Context, creds mailer.Credentials, recipient, subject, htmlBody string) (bool, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return false, fmt.Errorf("%w: %w", mailer.ErrSendFailed, ctx.Err())
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{Creds: creds, Recipient: recipient, Subject: subject, HTML: htmlBody})
	if err, ok := m.fail[recipient]; ok {
		return false, fmt.Errorf("%w: %w", mailer.ErrSendFailed, err)
	}
	return true, nil
}

func (m *MockTransport) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// MockQueue stores published payloads and delivers them on demand.
type MockQueue struct {
	handlers map[string]queue.Handler
	pending  []any
	err      error
}

func (m *MockQueue) Subscribe(topic string, handler queue.Handler) error {
	if m.handlers == nil {
		m.handlers = map[string]queue.Handler{}
	}
	m.handlers[topic] = handler
	return nil
}

func (m *MockQueue) Publish(topic string, payload any) error {
	if m.err != nil {
		return m.err
	}
	m.pending = append(m.pending, payload)
	return nil
}

// Drain runs every pending payload synchronously.
func (m *MockQueue) Drain(ctx context.Context, topic string) {
	for len(m.pending) > 0 {
		p := m.pending[0]
		m.pending = m.pending[1:]
		_ = m.handlers[topic](ctx, p)
	}
}

// MockClickRepo counts clicks in memory.
type MockClickRepo struct {
	mu         sync.Mutex
	clicks     []time.Time
	partitions []time.Time
}

func (m *MockClickRepo) EnsurePartition(ctx context.Context, month time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partitions = append(m.partitions, month)
	return nil
}

func (m *MockClickRepo) AddClick(ctx context.Context, mailerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, at)
	return nil
}

func (m *MockClickRepo) Count(ctx context.Context, mailerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clicks), nil
}

func (m *MockClickRepo) CountByDay(ctx context.Context, mailerID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.clicks {
		if c.Year() == day.Year() && c.YearDay() == day.YearDay() {
			n++
		}
	}
	return n, nil
}

func (m *MockClickRepo) CountByMonth(ctx context.Context, mailerID string, month time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.clicks {
		if c.Year() == month.Year() && c.Month() == month.Month() {
			n++
		}
	}
	return n, nil
}

// MockEmailLogRepo serves canned aggregates.
type MockEmailLogRepo struct {
	total      map[string]int
	successful map[string]int
	logs       []model.DeliveryOutcome
}

func (m *MockEmailLogRepo) Insert(ctx context.Context, o *model.DeliveryOutcome) error {
	m.logs = append(m.logs, *o)
	return nil
}

func (m *MockEmailLogRepo) CountByDepartment(ctx context.Context, mailerID string) (map[string]int, error) {
	return m.total, nil
}

func (m *MockEmailLogRepo) SuccessfulCountByDepartment(ctx context.Context, mailerID string) (map[string]int, error) {
	return m.successful, nil
}

func (m *MockEmailLogRepo) ListByMailer(ctx context.Context, mailerID string) ([]model.DeliveryOutcome, error) {
	return m.logs, nil
}

func strPtr(s string) *string { return &s }
