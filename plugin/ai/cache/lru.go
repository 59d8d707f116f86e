package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache is a capacity bounded cache with per-entry expiry.
type LRUCache struct {
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time
	mu         sync.Mutex

	items map[string]*list.Element
	order *list.List // front = most recently used

	hits, misses, evictions int64
}

type lruItem struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// LRUStats is a point-in-time view of cache counters.
type LRUStats struct {
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewLRUCache creates an LRU cache. Non-positive arguments fall back to
// 1000 entries and a 5 minute TTL.
func NewLRUCache(capacity int, defaultTTL time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &LRUCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
		items:      make(map[string]*list.Element, capacity),
		order:      list.New(),
	}
}

// Get returns a live value and marks it as recently used.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	item := elem.Value.(*lruItem)
	if c.now().After(item.expiresAt) {
		c.remove(elem)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return item.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*lruItem)
		item.value = value
		item.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	for len(c.items) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest)
		c.evictions++
	}
	c.items[key] = c.order.PushFront(&lruItem{key: key, value: value, expiresAt: expiresAt})
}

// Invalidate removes the key, or all keys with the prefix before a trailing
// '*'. It returns the number of removed entries.
func (c *LRUCache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if !wildcard {
		if elem, ok := c.items[pattern]; ok {
			c.remove(elem)
			return 1
		}
		return 0
	}

	removed := 0
	for key, elem := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.remove(elem)
			removed++
		}
	}
	return removed
}

// CleanupExpired drops expired entries and returns how many were removed.
func (c *LRUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*lruItem).expiresAt) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Size returns the number of stored entries, expired ones included.
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Stats returns the cache counters.
func (c *LRUCache) Stats() LRUStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return LRUStats{Size: len(c.items), Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}

// remove must be called with the lock held.
func (c *LRUCache) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*lruItem).key)
}
