package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	defaultLocalCapacity   = 1000
	defaultCleanupInterval = 5 * time.Minute
)

type localEntry struct {
	key        string
	value      []byte
	insertedAt time.Time
	expiresAt  time.Time
	elem       *list.Element
}

// LocalCache is the process-local cache tier: a bounded map with TTL expiry.
// When full, the entry with the oldest insertion time is evicted to admit a
// new write. Eviction follows recency of insertion, not recency of access,
// so reads never reorder entries.
type LocalCache struct {
	mu       sync.RWMutex
	capacity int
	items    map[string]*localEntry
	order    *list.List // front = oldest insertion

	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
	cleanupInterval time.Duration
}

// NewLocalCache creates a bounded local cache. Non-positive capacity or
// cleanup interval fall back to defaults.
func NewLocalCache(capacity int, cleanupInterval time.Duration) *LocalCache {
	if capacity <= 0 {
		capacity = defaultLocalCapacity
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	c := &LocalCache{
		capacity:        capacity,
		items:           make(map[string]*localEntry, capacity),
		order:           list.New(),
		stopCleanup:     make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}

	go c.cleanupExpired()

	return c
}

// Get retrieves a value. Expired entries are evicted lazily and reported as
// absent.
func (c *LocalCache) Get(key string) ([]byte, bool) {
	// Copy the fields under the read lock: a concurrent Set on the same key
	// mutates the shared entry under the write lock.
	c.mu.RLock()
	entry, ok := c.items[key]
	var value []byte
	var expiresAt time.Time
	if ok {
		value = entry.value
		expiresAt = entry.expiresAt
	}
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	now := time.Now()
	if now.After(expiresAt) {
		c.mu.Lock()
		if e, exists := c.items[key]; exists && now.After(e.expiresAt) {
			c.remove(e)
		}
		c.mu.Unlock()
		return nil, false
	}

	return value, true
}

// Set stores a value with a TTL, evicting the oldest-inserted entry if the
// cache is at capacity. Overwriting an existing key refreshes its insertion
// position. A non-positive TTL deletes the key.
func (c *LocalCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		c.Delete(key)
		return
	}

	// Copy to decouple from the caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		entry.value = valueCopy
		entry.insertedAt = now
		entry.expiresAt = now.Add(ttl)
		c.order.MoveToBack(entry.elem)
		return
	}

	if len(c.items) >= c.capacity {
		if oldest := c.order.Front(); oldest != nil {
			c.remove(oldest.Value.(*localEntry))
		}
	}

	entry := &localEntry{
		key:        key,
		value:      valueCopy,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	entry.elem = c.order.PushBack(entry)
	c.items[key] = entry
}

// Delete removes a key if present
func (c *LocalCache) Delete(key string) {
	c.mu.Lock()
	if entry, ok := c.items[key]; ok {
		c.remove(entry)
	}
	c.mu.Unlock()
}

// remove drops an entry; callers hold the write lock
func (c *LocalCache) remove(entry *localEntry) {
	delete(c.items, entry.key)
	c.order.Remove(entry.elem)
}

// Len returns the number of entries currently held
func (c *LocalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Capacity returns the configured maximum entry count
func (c *LocalCache) Capacity() int {
	return c.capacity
}

// cleanupExpired periodically removes expired entries so idle keys do not
// linger until capacity pressure
func (c *LocalCache) cleanupExpired() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for _, entry := range c.items {
				if now.After(entry.expiresAt) {
					c.remove(entry)
				}
			}
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine. Call on shutdown or in tests.
func (c *LocalCache) Close() {
	c.cleanupOnce.Do(func() {
		close(c.stopCleanup)
	})
}
