package client

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// cacheEntry holds one cached read-only response and its expiry.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// responseCache stores successful read-only responses per dependency target.
// Entries are evicted lazily on lookup; the cache is never shared across
// targets.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// cacheKey builds the lookup key from method, path and query parameters.
// Query parameters are sorted by url.Values encoding so equivalent calls
// share an entry.
func cacheKey(method, path string, query map[string]string) string {
	if len(query) == 0 {
		return method + " " + path
	}

	values := make(url.Values, len(query))
	for k, v := range query {
		values.Set(k, v)
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(path)
	b.WriteByte('?')
	b.WriteString(values.Encode())
	return b.String()
}

// get returns the cached response for key if present and unexpired.
func (c *responseCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	cp := *entry.response
	cp.Cached = true
	return &cp, true
}

// put stores or overwrites the entry for key with a fresh expiry.
func (c *responseCache) put(key string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *resp
	c.entries[key] = cacheEntry{
		response:  &cp,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// purge drops every entry.
func (c *responseCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
