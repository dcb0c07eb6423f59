package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/doctorgu/querybank/query"
)

// TemplateCache keeps parsed query templates so the alias rewrite and the
// conditional-block parse run once per distinct cache key instead of per
// call. Keys encode the query key plus the alias selection state.
type TemplateCache struct {
	cache *lru.Cache[string, *query.Template]
	mu    sync.RWMutex
}

// NewTemplateCache creates a cache bounded to size entries.
func NewTemplateCache(size int) *TemplateCache {
	cache, _ := lru.New[string, *query.Template](size)
	return &TemplateCache{cache: cache}
}

// GetOrParse returns the cached template for key, building it with parse
// on a miss. Concurrent misses on the same key build once.
func (c *TemplateCache) GetOrParse(key string, parse func() (*query.Template, error)) (*query.Template, error) {
	c.mu.RLock()
	if tmpl, ok := c.cache.Get(key); ok {
		c.mu.RUnlock()
		return tmpl, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if tmpl, ok := c.cache.Get(key); ok {
		return tmpl, nil
	}

	tmpl, err := parse()
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, tmpl)
	return tmpl, nil
}

// Len reports the number of cached templates.
func (c *TemplateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}

// Purge drops every cached template.
func (c *TemplateCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}
