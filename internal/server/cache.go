package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nhle/accomplishment-tracker/internal/model"
)

type cacheKey struct {
	path     string
	viewerID string
}

type cacheEntry struct {
	records []model.Accomplishment
	expires time.Time
}

// renderCache keeps the records behind a rendered page for a short time,
// per viewer. Entries expire after ttl or when their path is invalidated.
type renderCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[cacheKey]cacheEntry
}

func newRenderCache(ttl time.Duration, now func() time.Time) *renderCache {
	return &renderCache{ttl: ttl, now: now, entries: map[cacheKey]cacheEntry{}}
}

func (c *renderCache) Get(path, viewerID string) ([]model.Accomplishment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{path, viewerID}
	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, k)
		return nil, false
	}
	return e.records, true
}

func (c *renderCache) Set(path, viewerID string, records []model.Accomplishment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{path, viewerID}] = cacheEntry{records: records, expires: c.now().Add(c.ttl)}
}

// Invalidate drops every viewer's entry for path.
func (c *renderCache) Invalidate(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q is not absolute", path)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.path == path {
			delete(c.entries, k)
		}
	}
	return nil
}

// InvalidateViewer drops every entry of one viewer.
func (c *renderCache) InvalidateViewer(viewerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.viewerID == viewerID {
			delete(c.entries, k)
		}
	}
}
