package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// RedisGrantCache shares cached grants between gateway instances.
// Entries expire on their own after ttl.
type RedisGrantCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGrantCache(client *redis.Client, ttl time.Duration) *RedisGrantCache {
	return &RedisGrantCache{client: client, ttl: ttl}
}

func (c *RedisGrantCache) Load(ctx context.Context, username string, key model.GrantKey) (*model.CachedGrant, bool, error) {
	data, err := c.client.Get(ctx, grantKey(username, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load cached grant: %w", err)
	}

	var grant model.CachedGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached grant: %w", err)
	}
	return &grant, true, nil
}

func (c *RedisGrantCache) Save(ctx context.Context, username string, key model.GrantKey, grant *model.CachedGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to encode cached grant: %w", err)
	}

	if err := c.client.Set(ctx, grantKey(username, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cached grant: %w", err)
	}
	return nil
}

func (c *RedisGrantCache) Delete(ctx context.Context, username string, key model.GrantKey) error {
	if err := c.client.Del(ctx, grantKey(username, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached grant: %w", err)
	}
	return nil
}

var _ outbound.GrantCache = (*RedisGrantCache)(nil)
