// Package render caches rendered views of entries.
//
// Cache sits in front of the entry store and an external Renderer. A miss
// reads the entry, renders it and remembers the result, except for
// burn-after-reading entries: those are already gone from the store by the
// time they are rendered, and caching them would let the cache serve content
// the store considers deleted.
package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/dmitrijs2005/pastekeeper/internal/blocking"
	"github.com/dmitrijs2005/pastekeeper/internal/ident"
	"github.com/dmitrijs2005/pastekeeper/internal/logging"
	"github.com/dmitrijs2005/pastekeeper/internal/metrics"
	"github.com/dmitrijs2005/pastekeeper/internal/store"
)

// Fetcher reads entries. *store.Store implements it.
type Fetcher interface {
	Get(ctx context.Context, id ident.ID) (store.ReadEntry, error)
}

// Cache is a fixed-capacity LRU of rendered output.
type Cache struct {
	mu  sync.Mutex
	lru *simplelru.LRU
	// purges counts Purge calls. A miss that overlaps a Purge does not
	// cache its render, since the entry may have been deleted meanwhile.
	purges uint64

	entries Fetcher
	pool    *blocking.Pool
	logger  logging.Logger
}

// NewCache returns a Cache holding at most size renders. size must be > 0.
func NewCache(size int, entries Fetcher, pool *blocking.Pool, logger logging.Logger) (*Cache, error) {
	lru, err := simplelru.NewLRU(size, nil)
	if err != nil {
		return nil, fmt.Errorf("render cache: %w", err)
	}
	if pool == nil {
		pool = blocking.NewPool(0)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		lru:     lru,
		entries: entries,
		pool:    pool,
		logger:  logger.With("component", "render-cache"),
	}, nil
}

// GetOrRender returns the rendered view of key, rendering it with fn on a
// miss. The cache lock is not held while fetching or rendering, so two
// concurrent misses on one key both render and the later Add wins. A render
// whose fetch raced a Purge is returned but not cached.
func (c *Cache) GetOrRender(ctx context.Context, key Key, fn Renderer) (string, error) {
	out, gen, ok := c.get(key)
	if ok {
		metrics.RenderCacheHitsTotal.Inc()
		c.logger.Debug(ctx, "found cached item", "key", key.String())
		return out, nil
	}
	metrics.RenderCacheMissesTotal.Inc()

	entry, err := c.entries.Get(ctx, key.ID)
	if err != nil {
		return "", err
	}

	out, err = blocking.Do(ctx, c.pool, func() (string, error) {
		return fn(entry.Text, key.Ext)
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", key, err)
	}

	if !entry.Burned {
		c.add(ctx, key, out, gen)
	}
	return out, nil
}

// get looks key up and also returns the purge generation observed.
func (c *Cache) get(key Key) (string, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return "", c.purges, false
	}
	return v.(string), c.purges, true
}

func (c *Cache) add(ctx context.Context, key Key, out string, gen uint64) {
	c.mu.Lock()
	if c.purges != gen {
		c.mu.Unlock()
		c.logger.Debug(ctx, "skip caching item purged during render", "key", key.String())
		return
	}
	evicted := c.lru.Add(key, out)
	c.mu.Unlock()

	c.logger.Debug(ctx, "cache item", "key", key.String())
	if evicted {
		metrics.RenderCacheEvictionsTotal.Inc()
	}
}

// Peek returns the cached render of key without touching its recency.
func (c *Cache) Peek(key Key) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Peek(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Purge drops every cached render of id, whatever its format, and reports
// how many were removed.
func (c *Cache) Purge(id ident.ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purges++
	n := 0
	for _, k := range c.lru.Keys() {
		if k.(Key).ID == id {
			c.lru.Remove(k)
			n++
		}
	}
	return n
}

// Len returns the number of cached renders.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
