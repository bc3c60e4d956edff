// Package precache eagerly computes upscaled pixel buffers for every
// supported sampling level so parameter sweeps skip redundant upscale
// work. Entries are tied to one source buffer and invalidated wholesale
// when the source changes.
package precache

import (
	"context"
	"sync"

	"snapvec/internal/imaging"
)

// BuildFunc produces the cached buffer for one sampling level.
type BuildFunc func(ctx context.Context, src *imaging.PixelBuffer, level int) (*imaging.PixelBuffer, error)

// Cache holds precomputed upscale results keyed by sampling level for a
// single source buffer identity.
type Cache struct {
	mu      sync.Mutex
	source  *imaging.PixelBuffer
	entries map[int]*imaging.PixelBuffer
}

func New() *Cache {
	return &Cache{entries: make(map[int]*imaging.PixelBuffer)}
}

// Warm computes every requested level in parallel and stores the
// results. A new source invalidates all previous entries first. Levels
// that fail are skipped; the first error is returned after all workers
// finish.
func (c *Cache) Warm(ctx context.Context, src *imaging.PixelBuffer, levels []int, build BuildFunc) error {
	c.mu.Lock()
	if c.source != src {
		c.source = src
		c.entries = make(map[int]*imaging.PixelBuffer)
	}
	pending := make([]int, 0, len(levels))
	for _, level := range levels {
		if _, ok := c.entries[level]; !ok {
			pending = append(pending, level)
		}
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for _, level := range pending {
		wg.Add(1)
		go func(level int) {
			defer wg.Done()
			buf, err := build(ctx, src, level)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			c.mu.Lock()
			if c.source == src {
				c.entries[level] = buf
			}
			c.mu.Unlock()
		}(level)
	}
	wg.Wait()
	return firstErr
}

// Lookup returns the cached buffer for (source, level). The source must
// be the same buffer identity the cache was warmed with.
func (c *Cache) Lookup(src *imaging.PixelBuffer, level int) (*imaging.PixelBuffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != src {
		return nil, false
	}
	buf, ok := c.entries[level]
	return buf, ok
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = nil
	c.entries = make(map[int]*imaging.PixelBuffer)
}

// Len reports the number of cached levels.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
