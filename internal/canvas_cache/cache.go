// Package canvas_cache keeps recently rasterized canvases so identical
// requests share one rasterization.
package canvas_cache

import (
	"container/list"
	"context"
	"image"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"tileserver/internal/cache"
	"tileserver/internal/metrics"
)

// RenderFunc rasterizes the canvas for a key on a miss.
type RenderFunc func() (*image.RGBA, error)

type entry struct {
	key    cache.TileKey
	canvas *image.RGBA
}

// Cache is a bounded LRU of canvases keyed by bounding box, output size and
// dataset version. Concurrent misses on one key run a single render, and at
// most workers renders run at once across all keys.
//
// Cached canvases are shared between callers and must be treated as
// read-only.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	items   map[cache.TileKey]*list.Element
	lruList *list.List

	group  singleflight.Group
	slots  *semaphore.Weighted
	logger *zap.Logger
}

func New(maxSize, workers int, logger *zap.Logger) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Cache{
		maxSize: maxSize,
		items:   make(map[cache.TileKey]*list.Element),
		lruList: list.New(),
		slots:   semaphore.NewWeighted(int64(workers)),
		logger:  logger,
	}
}

// Get returns the canvas for key, calling render on a miss. The bool reports
// whether the canvas came from the cache or from another caller's render; it
// is false only for the caller whose render produced it.
// Failed renders are not cached. Cancelling ctx releases the caller but not a
// render already underway, which still completes and is cached.
func (c *Cache) Get(ctx context.Context, key cache.TileKey, render RenderFunc) (*image.RGBA, bool, error) {
	if canvas, ok := c.lookup(key); ok {
		metrics.CanvasCacheHits.Inc()
		return canvas, true, nil
	}

	// Set only when this caller's function runs and renders. The channel
	// receive below orders the write before the read.
	rendered := false
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		if canvas, ok := c.lookup(key); ok {
			return canvas, nil
		}

		metrics.CanvasCacheMisses.Inc()
		if err := c.slots.Acquire(context.Background(), 1); err != nil {
			return nil, err
		}
		defer c.slots.Release(1)

		canvas, err := render()
		if err != nil {
			c.logger.Warn("Canvas render failed", zap.Stringer("key", key), zap.Error(err))
			return nil, err
		}
		c.store(key, canvas)
		rendered = true
		return canvas, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*image.RGBA), !rendered, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (c *Cache) lookup(key cache.TileKey) (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.lruList.MoveToFront(elem)
	return elem.Value.(*entry).canvas, true
}

func (c *Cache) store(key cache.TileKey, canvas *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry).canvas = canvas
		c.lruList.MoveToFront(elem)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		if oldest := c.lruList.Back(); oldest != nil {
			delete(c.items, oldest.Value.(*entry).key)
			c.lruList.Remove(oldest)
		}
	}
	c.items[key] = c.lruList.PushFront(&entry{key: key, canvas: canvas})
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[cache.TileKey]*list.Element)
	c.lruList = list.New()
}
