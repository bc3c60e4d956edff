// Package pool parallelizes large traces by sharding the source image
// into strips along its long axis, dispatching the strips to a fixed
// set of worker engines and merging the results back into one output.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"snapvec/internal/imaging"
	"snapvec/internal/logger"
	"snapvec/internal/tracer"
)

const (
	// minStripPixels is the smallest strip worth dispatching; below this
	// the sharding overhead beats the parallelism win.
	minStripPixels = 500_000

	minWorkers = 2
	maxWorkers = 8
)

// DefaultSize derives the worker count from the host CPU count, keeping
// one core free for the caller.
func DefaultSize() int {
	n := runtime.NumCPU() - 1
	if n < minWorkers {
		return minWorkers
	}
	if n > maxWorkers {
		return maxWorkers
	}
	return n
}

// request is one strip of work sent to a worker.
type request struct {
	ctx    context.Context
	index  int
	buf    *imaging.PixelBuffer
	params tracer.Params
	reply  chan<- response
}

// response carries a traced strip back to the dispatcher.
type response struct {
	index  int
	result *tracer.Result
	err    error
}

// Pool runs a fixed set of worker goroutines, each owning a tracer
// engine with its own caches.
type Pool struct {
	size     int
	log      logger.Logger
	markup   bool
	requests chan request

	closeOnce sync.Once
}

// Option configures a Pool.
type Option func(*config)

type config struct {
	size       int
	log        logger.Logger
	markup     bool
	engineOpts []tracer.Option
}

func WithSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.size = n
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithMarkup regenerates the flattened path markup on the merged result.
func WithMarkup(enabled bool) Option {
	return func(c *config) { c.markup = enabled }
}

// WithEngineOptions passes options through to every worker engine.
func WithEngineOptions(opts ...tracer.Option) Option {
	return func(c *config) { c.engineOpts = append(c.engineOpts, opts...) }
}

// New starts the workers. Each worker builds its engine up front so
// tracing never pays construction cost.
func New(opts ...Option) *Pool {
	cfg := config{size: DefaultSize(), log: logger.Nop{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool{
		size:     cfg.size,
		log:      cfg.log,
		markup:   cfg.markup,
		requests: make(chan request),
	}
	for i := 0; i < cfg.size; i++ {
		go p.worker(tracer.NewEngine(cfg.engineOpts...))
	}
	return p
}

// Size reports the worker count.
func (p *Pool) Size() int { return p.size }

// Close stops the workers. In-flight strips finish; Trace must not be
// called after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.requests) })
}

func (p *Pool) worker(engine *tracer.Engine) {
	for req := range p.requests {
		result, err := engine.Trace(req.ctx, req.buf, req.params)
		req.reply <- response{index: req.index, result: result, err: err}
	}
}

// Trace runs the full pipeline over buf. Small images go to a single
// worker; large ones are sharded into strips, dispatched concurrently
// and merged. The merged result is equivalent to a sequential trace up
// to seam-local differences.
func (p *Pool) Trace(ctx context.Context, buf *imaging.PixelBuffer, params tracer.Params) (*tracer.Result, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	strips := shard(buf, p.size)
	if len(strips) > 1 {
		p.log.Debug("pool", "sharding trace", map[string]interface{}{
			"strips": len(strips),
			"width":  buf.Width,
			"height": buf.Height,
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies := make(chan response, len(strips))
	for i, s := range strips {
		p.requests <- request{ctx: runCtx, index: i, buf: s.buf, params: params, reply: replies}
	}

	results := make([]*tracer.Result, len(strips))
	var firstErr error
	for range strips {
		resp := <-replies
		if resp.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("strip %d: %w", resp.index, resp.err)
				cancel()
			}
			continue
		}
		results[resp.index] = resp.result
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if len(strips) == 1 {
		return results[0], nil
	}
	return p.merge(buf, strips, results), nil
}

// strip is one shard of the source image plus its origin in source
// pixel coordinates.
type strip struct {
	buf     *imaging.PixelBuffer
	originX int
	originY int
}

// shard cuts buf along its long axis into at most size strips of at
// least minStripPixels each. A buffer below the threshold stays whole.
func shard(buf *imaging.PixelBuffer, size int) []strip {
	total := buf.Width * buf.Height
	count := total / minStripPixels
	if count > size {
		count = size
	}
	if count <= 1 {
		return []strip{{buf: buf}}
	}

	strips := make([]strip, 0, count)
	if buf.Height >= buf.Width {
		step := buf.Height / count
		for i := 0; i < count; i++ {
			y0 := i * step
			y1 := y0 + step
			if i == count-1 {
				y1 = buf.Height
			}
			strips = append(strips, strip{buf: buf.Strip(y0, y1), originY: y0})
		}
	} else {
		step := buf.Width / count
		for i := 0; i < count; i++ {
			x0 := i * step
			x1 := x0 + step
			if i == count-1 {
				x1 = buf.Width
			}
			strips = append(strips, strip{buf: buf.StripColumns(x0, x1), originX: x0})
		}
	}
	return strips
}

// merge translates each strip's paths by its origin, merges palettes
// and re-sorts paths by merged pixel coverage. Path data is already in
// source pixel units, so the origin applies directly.
func (p *Pool) merge(src *imaging.PixelBuffer, strips []strip, results []*tracer.Result) *tracer.Result {
	palettes := make([][]tracer.PaletteItem, len(results))
	for i, r := range results {
		palettes[i] = r.Palette
	}
	palette := tracer.MergePalettes(palettes...)

	coverage := make(map[string]int, len(palette))
	for _, item := range palette {
		coverage[item.Hex] = item.PixelCount
	}

	var paths []tracer.VectorPath
	for i, r := range results {
		for _, path := range r.Paths {
			path.OffsetX += float64(strips[i].originX)
			path.OffsetY += float64(strips[i].originY)
			paths = append(paths, path)
		}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return coverage[paths[i].FillColor] > coverage[paths[j].FillColor]
	})
	for i := range paths {
		paths[i].ID = fmt.Sprintf("path-%d", i+1)
	}

	merged := &tracer.Result{
		Paths:   paths,
		Palette: palette,
		Width:   src.Width,
		Height:  src.Height,
	}
	if p.markup {
		merged.Markup = tracer.PathMarkup(paths)
	}
	return merged
}
