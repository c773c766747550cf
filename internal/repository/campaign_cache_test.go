package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smart-mailer/internal/logger"
	"github.com/unclebandit/smart-mailer/internal/model"
)

type MockRedisStore struct {
	values  map[string]string
	getErr  error
	setErr  error
	setTTLs []time.Duration
}

func (m *MockRedisStore) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *MockRedisStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if m.setErr != nil {
		return redis.NewStatusResult("", m.setErr)
	}
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value.(string)
	m.setTTLs = append(m.setTTLs, expiration)
	return redis.NewStatusResult("OK", nil)
}

type MockCampaignRepo struct {
	known       map[string]bool
	existsCalls int
	existsErr   error
	ctxErrs     []error
}

func (m *MockCampaignRepo) Create(ctx context.Context) (*model.Campaign, error) {
	return &model.Campaign{ID: "new-id", CreatedAt: time.Now()}, nil
}

func (m *MockCampaignRepo) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	return &model.Campaign{ID: id}, nil
}

func (m *MockCampaignRepo) Exists(ctx context.Context, id string) (bool, error) {
	m.existsCalls++
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	return m.known[id], m.existsErr
}

func (m *MockCampaignRepo) ListAll(ctx context.Context) ([]model.Campaign, error) {
	return nil, nil
}

func TestCampaignCacheCachesHits(t *testing.T) {
	repo := &MockCampaignRepo{known: map[string]bool{"abc": true}}
	store := &MockRedisStore{}
	c := NewCampaignCache(repo, store, 10*time.Minute, logger.NewNope())

	ok, err := c.Exists(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 1, repo.existsCalls)
	assert.Equal(t, []time.Duration{10 * time.Minute}, store.setTTLs)
}

func TestCampaignCacheDoesNotCacheMisses(t *testing.T) {
	repo := &MockCampaignRepo{known: map[string]bool{}}
	store := &MockRedisStore{}
	c := NewCampaignCache(repo, store, time.Minute, logger.NewNope())

	for i := 0; i < 2; i++ {
		ok, err := c.Exists(context.Background(), "unknown")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 2, repo.existsCalls)
	assert.Empty(t, store.values)
}

func TestCampaignCacheFallsBackOnRedisError(t *testing.T) {
	repo := &MockCampaignRepo{known: map[string]bool{"abc": true}}
	store := &MockRedisStore{getErr: errors.New("connection refused"), setErr: errors.New("connection refused")}
	c := NewCampaignCache(repo, store, time.Minute, logger.NewNope())

	ok, err := c.Exists(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, repo.existsCalls)
}

func TestCampaignCachePropagatesRepositoryError(t *testing.T) {
	repo := &MockCampaignRepo{existsErr: errors.New("db down")}
	c := NewCampaignCache(repo, &MockRedisStore{}, time.Minute, logger.NewNope())

	_, err := c.Exists(context.Background(), "abc")
	assert.Error(t, err)
}

func TestCampaignCacheRemembersCreatedCampaigns(t *testing.T) {
	repo := &MockCampaignRepo{}
	store := &MockRedisStore{}
	c := NewCampaignCache(repo, store, time.Minute, logger.NewNope())

	created, err := c.Create(context.Background())
	require.NoError(t, err)

	ok, err := c.Exists(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, repo.existsCalls)
}

func TestCampaignCacheEmptyID(t *testing.T) {
	repo := &MockCampaignRepo{}
	c := NewCampaignCache(repo, &MockRedisStore{}, time.Minute, logger.NewNope())

	ok, err := c.Exists(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, repo.existsCalls)
}

func TestCampaignCacheLookupOutlivesCancelledCaller(t *testing.T) {
	repo := &MockCampaignRepo{known: map[string]bool{"abc": true}}
	c := NewCampaignCache(repo, &MockRedisStore{}, time.Minute, logger.NewNope())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := c.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, repo.ctxErrs, 1)
	assert.NoError(t, repo.ctxErrs[0])
}
