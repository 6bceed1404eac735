// Package query answers similarity search requests: it normalizes and
// caches query keys, coalesces concurrent identical requests through a
// singleflight group, and formats results for tool consumption.
package query

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

type cacheEntry struct {
	value     *Result
	expiresAt time.Time
}

// Cache is a bounded LRU with a per-entry TTL layered on top of
// groupcache's lru.Cache, which handles the eviction bookkeeping; Cache
// only adds the expiry check groupcache's Cache doesn't have on its own.
type Cache struct {
	mu  sync.Mutex
	ttl time.Duration
	lru *lru.Cache
}

// NewCache builds a Cache bounded to maxEntries, each valid for ttl.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		ttl: ttl,
		lru: lru.New(maxEntries),
	}
}

// Get returns the cached Result for key if present and not expired.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key, relying on groupcache's LRU to evict the
// least-recently-used entry once the cache is at capacity.
func (c *Cache) Set(key string, value *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, &cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)})
}

// Sweep removes every expired entry. groupcache's lru.Cache exposes no
// read-only peek at the oldest entry, so Sweep drains the whole cache via
// RemoveOldest's OnEvicted callback, discards the expired entries, and
// re-adds the still-live ones in their original oldest-to-newest order —
// re-adding necessarily touches recency (groupcache has no "insert without
// promoting"), but doing it for every survivor in original order at least
// keeps their relative order intact, rather than yanking a single one to
// most-recently-used while leaving the rest untouched.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	type kv struct {
		key lru.Key
		val *cacheEntry
	}
	var live []kv

	for c.lru.Len() > 0 {
		var poppedKey lru.Key
		var poppedVal any
		c.lru.OnEvicted = func(k lru.Key, v any) {
			poppedKey, poppedVal = k, v
		}
		c.lru.RemoveOldest()
		c.lru.OnEvicted = nil

		entry := poppedVal.(*cacheEntry)
		if now.After(entry.expiresAt) {
			continue
		}
		live = append(live, kv{poppedKey, entry})
	}
	for _, e := range live {
		c.lru.Add(e.key, e.val)
	}
}

// Len reports the current entry count, including any not-yet-swept expired
// entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
