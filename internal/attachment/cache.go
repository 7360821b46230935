// ABOUTME: Thread-safe TTL cache for minted preview URLs
// ABOUTME: Bounds repeat signing work when the same attachment is rendered often

package attachment

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the URL, its expiry, and the list element for a cached key.
type cacheEntry struct {
	url     string
	expires time.Time
	element *list.Element
}

// urlCache is a size-limited TTL cache from object keys to signed preview
// URLs. Entries expire lazily on lookup; a doubly-linked list maintains
// insertion order for O(1) eviction when the cache is full.
type urlCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
}

func newURLCache(ttl time.Duration, maxSize int) *urlCache {
	return &urlCache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// get returns the cached URL for a key, or "" when absent or expired.
func (c *urlCache) get(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return ""
	}
	if time.Now().After(entry.expires) {
		c.order.Remove(entry.element)
		delete(c.entries, key)
		return ""
	}
	return entry.url
}

// put stores a URL. If the cache is at capacity the oldest entry is
// evicted to make room.
func (c *urlCache) put(key, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	// If key already exists, refresh in place and move to back
	if entry, exists := c.entries[key]; exists {
		entry.url = url
		entry.expires = now.Add(c.ttl)
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry{
		url:     url,
		expires: now.Add(c.ttl),
		element: elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *urlCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}
