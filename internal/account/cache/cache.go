package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"krtbank/internal/account/models"
)

// DefaultTTL matches a one-day expiry for cached account views.
const DefaultTTL = 24 * time.Hour

// ViewCache is a Redis cache-aside store of AccountView projections keyed by
// the account id string.
type ViewCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*ViewCache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *ViewCache) {
		c.logger = logger
	}
}

// WithTTL overrides the expiry applied on Set. Zero keeps keys without expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *ViewCache) {
		c.ttl = ttl
	}
}

func New(client redis.Cmdable, opts ...Option) *ViewCache {
	c := &ViewCache{
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached view. A missing key, an unreachable Redis and an
// undecodable value are all reported as a miss.
func (c *ViewCache) Get(ctx context.Context, key string) (*models.AccountView, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "account cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var view models.AccountView
	if err := json.Unmarshal(data, &view); err != nil {
		c.logger.WarnContext(ctx, "account cache entry undecodable", "key", key, "error", err)
		return nil, false
	}
	return &view, true
}

func (c *ViewCache) Set(ctx context.Context, key string, view *models.AccountView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode account view: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache account view: %w", err)
	}
	return nil
}

func (c *ViewCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("evict account view: %w", err)
	}
	return nil
}
