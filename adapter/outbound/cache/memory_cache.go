package cache

import (
	"context"
	"sync"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// MemoryGrantCache keeps grants for the life of the process
type MemoryGrantCache struct {
	mu     sync.RWMutex
	grants map[string]*model.CachedGrant
}

func NewMemoryGrantCache() *MemoryGrantCache {
	return &MemoryGrantCache{grants: make(map[string]*model.CachedGrant)}
}

func (c *MemoryGrantCache) Load(ctx context.Context, username string, key model.GrantKey) (*model.CachedGrant, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	grant, ok := c.grants[grantKey(username, key)]
	if !ok {
		return nil, false, nil
	}
	return &model.CachedGrant{Request: grant.Request.Clone(), CachedAt: grant.CachedAt}, true, nil
}

func (c *MemoryGrantCache) Save(ctx context.Context, username string, key model.GrantKey, grant *model.CachedGrant) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.grants[grantKey(username, key)] = &model.CachedGrant{Request: grant.Request.Clone(), CachedAt: grant.CachedAt}
	return nil
}

func (c *MemoryGrantCache) Delete(ctx context.Context, username string, key model.GrantKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.grants, grantKey(username, key))
	return nil
}

const grantKeyPrefix = "accessgate:grant:"

func grantKey(username string, key model.GrantKey) string {
	return grantKeyPrefix + username + ":" + string(key.Module) + ":" + string(key.RequestType)
}

var _ outbound.GrantCache = (*MemoryGrantCache)(nil)
