package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

// ErrMiss is returned when a policy is not cached.
var ErrMiss = errors.New("cache miss")

// PolicyCache keeps resolved discount policies in Redis so repeated
// validations of the same code skip the database. A broken cache degrades to
// a miss; validation never fails because Redis is down.
type PolicyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewPolicyCache creates a PolicyCache backed by the given Redis client
func NewPolicyCache(client *redis.Client, ttl time.Duration, logger logger.Logger) *PolicyCache {
	return &PolicyCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func policyKey(code string) string {
	return "discount:policy:" + code
}

// Get retrieves a cached discount policy for a normalized code
func (c *PolicyCache) Get(ctx context.Context, code string) (*models.Discount, error) {
	data, err := c.client.Get(ctx, policyKey(code)).Bytes()

	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Policy cache read failed, treating as miss", "error", err, "code", code)
		}
		return nil, ErrMiss
	}

	var discount models.Discount
	if err := json.Unmarshal(data, &discount); err != nil {
		c.logger.Warn("Policy cache entry is corrupt, treating as miss", "error", err, "code", code)
		return nil, ErrMiss
	}

	return &discount, nil
}

// Set stores a discount policy under a normalized code. Errors are logged
// and swallowed.
func (c *PolicyCache) Set(ctx context.Context, code string, discount *models.Discount) {
	data, err := json.Marshal(discount)

	if err != nil {
		c.logger.Warn("Failed to marshal discount policy for cache", "error", err, "code", code)
		return
	}

	if err := c.client.Set(ctx, policyKey(code), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Policy cache write failed", "error", err, "code", code)
	}
}

// Invalidate drops a cached policy, e.g. after a code's usage limit is hit
func (c *PolicyCache) Invalidate(ctx context.Context, code string) {
	if err := c.client.Del(ctx, policyKey(code)).Err(); err != nil {
		c.logger.Warn("Policy cache invalidation failed", "error", err, "code", code)
	}
}

// Ping verifies connectivity for health reporting
func (c *PolicyCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
