// internal/repository/campaign_cache.go
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/unclebandit/smart-mailer/internal/model"
)

// RedisStore is the subset of the Redis client used by CampaignCache.
type RedisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

const lookupTimeout = 5 * time.Second

// CampaignCache fronts a CampaignRepositoryInterface with a Redis existence
// cache. Campaigns are immutable and never deleted, so only hits are cached.
type CampaignCache struct {
	CampaignRepositoryInterface

	Store  RedisStore
	TTL    time.Duration
	Prefix string
	Log    *slog.Logger

	group singleflight.Group
}

func NewCampaignCache(inner CampaignRepositoryInterface, store RedisStore, ttl time.Duration, log *slog.Logger) *CampaignCache {
	return &CampaignCache{
		CampaignRepositoryInterface: inner,
		Store:                       store,
		TTL:                         ttl,
		Prefix:                      "mailer:exists:",
		Log:                         log,
	}
}

func (c *CampaignCache) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	key := c.Prefix + id

	val, err := c.Store.Get(ctx, key).Result()
	switch {
	case err == nil && val == "1":
		return true, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.Log.Warn("campaign cache read failed", slog.String("mailer_id", id), slog.Any("error", err))
	}

	// Shared by every concurrent caller for id; detached from the first one's cancellation.
	v, err, _ := c.group.Do(id, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return c.CampaignRepositoryInterface.Exists(lookupCtx, id)
	})
	if err != nil {
		return false, err
	}
	exists := v.(bool)
	if exists {
		c.remember(ctx, id)
	}
	return exists, nil
}

func (c *CampaignCache) Create(ctx context.Context) (*model.Campaign, error) {
	campaign, err := c.CampaignRepositoryInterface.Create(ctx)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, campaign.ID)
	return campaign, nil
}

func (c *CampaignCache) remember(ctx context.Context, id string) {
	if err := c.Store.Set(ctx, c.Prefix+id, "1", c.TTL).Err(); err != nil {
		c.Log.Warn("campaign cache write failed", slog.String("mailer_id", id), slog.Any("error", err))
	}
}
