package dash

import (
	"sync"
	"time"
)

// PreviewCache holds recent pane captures keyed by pane key string, so
// cursor movement re-shows the last snapshot instantly instead of waiting
// for a fresh capture. Absence results are cached too: a pane that refused
// capture (unfocused on zellij, or the dashboard's own pane) would otherwise
// be re-captured on every tick for nothing.
//
// Entries expire after a TTL so a stale snapshot never outlives the next
// capture cadence for long. A TTL of 0 disables caching.
type PreviewCache struct {
	mu      sync.RWMutex
	entries map[string]*previewEntry
	ttl     time.Duration
}

type previewEntry struct {
	content    string
	ok         bool
	capturedAt time.Time
}

// Preview is one cached capture result.
type Preview struct {
	Content    string
	OK         bool
	CapturedAt time.Time
}

// NewPreviewCache creates a cache with the given TTL.
func NewPreviewCache(ttl time.Duration) *PreviewCache {
	return &PreviewCache{
		entries: make(map[string]*previewEntry),
		ttl:     ttl,
	}
}

// Lookup returns the cached preview for key if one exists and has not
// expired.
func (c *PreviewCache) Lookup(key string) (*Preview, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(entry.capturedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return &Preview{Content: entry.content, OK: entry.ok, CapturedAt: entry.capturedAt}, true
}

// Store saves a capture result for key.
func (c *PreviewCache) Store(key, content string, ok bool) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &previewEntry{
		content:    content,
		ok:         ok,
		capturedAt: time.Now(),
	}
}

// Invalidate removes the entry for key, forcing a fresh capture on the next
// tick. Used after sending input to a pane, since its content is about to
// change.
func (c *PreviewCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
