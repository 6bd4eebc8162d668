package session

import (
	"context"
	"sync"
	"time"
)

// Cache provides a simple in-memory cache with TTL support.
// It is safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheItem
	ttl   time.Duration
	now   func() time.Time
}

type cacheItem struct {
	value     any
	expiresAt time.Time
}

// NewCache creates a new Cache instance with the specified default TTL.
// Items stored without an explicit TTL will use the default TTL provided.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		items: make(map[string]*cacheItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a value from the cache by key.
// Returns nil if the key does not exist or the item has expired.
func (c *Cache) Get(ctx context.Context, key string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || c.now().After(item.expiresAt) {
		return nil, nil
	}
	return item.value, nil
}

// Set stores a value in the cache with the specified key and TTL.
// If TTL is zero, the cache's default TTL is used. Expired entries are
// swept on every write.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.ttl
	}

	now := c.now()
	for k, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, k)
		}
	}

	c.items[key] = &cacheItem{
		value:     value,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Delete removes an item from the cache by key.
// No error is returned if the key does not exist.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cacheItem)
}
