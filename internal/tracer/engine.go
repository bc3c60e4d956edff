// Package tracer orchestrates the raster→vector pipeline: preprocess,
// quantize, trace contours and build paths. One Engine serves one open
// image; its caches never outlive the source buffer they were built
// from.
package tracer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"snapvec/internal/contour"
	"snapvec/internal/imaging"
	"snapvec/internal/logger"
	"snapvec/internal/pathbuild"
	"snapvec/internal/precache"
	"snapvec/internal/quantize"
)

const quantCacheCap = 8

// Preprocessor is the seam for an alternate (native/accelerated)
// preprocessing backend. The pure-Go implementation is the default;
// a failing backend degrades to it with a status event.
type Preprocessor interface {
	Upscale(ctx context.Context, src *imaging.PixelBuffer, factor int) (*imaging.PixelBuffer, error)
	Sharpen(ctx context.Context, src *imaging.PixelBuffer, strength float64) (*imaging.PixelBuffer, error)
	Blur(ctx context.Context, src *imaging.PixelBuffer, radius int) (*imaging.PixelBuffer, error)
	Reduce(ctx context.Context, src *imaging.PixelBuffer, mode imaging.Mode) (*imaging.PixelBuffer, error)
}

// purePreprocessor runs the imaging package directly.
type purePreprocessor struct{}

func (purePreprocessor) Upscale(ctx context.Context, src *imaging.PixelBuffer, factor int) (*imaging.PixelBuffer, error) {
	return imaging.Upscale(ctx, src, factor)
}

func (purePreprocessor) Sharpen(ctx context.Context, src *imaging.PixelBuffer, strength float64) (*imaging.PixelBuffer, error) {
	return imaging.Sharpen(ctx, src, strength)
}

func (purePreprocessor) Blur(ctx context.Context, src *imaging.PixelBuffer, radius int) (*imaging.PixelBuffer, error) {
	return imaging.BoxBlur(ctx, src, radius)
}

func (purePreprocessor) Reduce(ctx context.Context, src *imaging.PixelBuffer, mode imaging.Mode) (*imaging.PixelBuffer, error) {
	return imaging.ReduceColorMode(ctx, src, mode)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger wires structured logging.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithBackend installs an accelerated preprocessor backend.
func WithBackend(pre Preprocessor) Option {
	return func(e *Engine) { e.backend = pre }
}

// WithStatusFunc receives out-of-band status events (degradation,
// precache completion).
func WithStatusFunc(fn func(StatusEvent)) Option {
	return func(e *Engine) { e.statusFn = fn }
}

// WithMarkup enables the flattened path-markup string on results.
func WithMarkup(enabled bool) Option {
	return func(e *Engine) { e.markup = enabled }
}

// Engine runs the pipeline for one image. It is safe for sequential
// reuse across parameter changes; the worker pool creates one engine
// per worker so caches are never shared across goroutines.
type Engine struct {
	mu       sync.Mutex
	log      logger.Logger
	backend  Preprocessor
	pure     purePreprocessor
	statusFn func(StatusEvent)
	markup   bool

	source     *imaging.PixelBuffer
	samples    *precache.Cache
	quantCache map[string]*quantize.Result
}

// NewEngine builds an engine with per-image caches.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		log:        logger.Nop{},
		samples:    precache.New(),
		quantCache: make(map[string]*quantize.Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Precompute warms the sampling precache for every supported level of
// the given source buffer in parallel.
func (e *Engine) Precompute(ctx context.Context, buf *imaging.PixelBuffer) error {
	if err := buf.Validate(); err != nil {
		return &InputError{Field: "buffer", Reason: err.Error()}
	}
	e.resetIfNewSource(buf)

	err := e.samples.Warm(ctx, buf, SamplingLevels, func(ctx context.Context, src *imaging.PixelBuffer, level int) (*imaging.PixelBuffer, error) {
		return e.upscaleSharpen(ctx, src, level)
	})
	if err != nil {
		return err
	}
	e.emit(StatusEvent{Code: StatusPrecached, Message: "sampling levels precomputed"})
	return nil
}

// Trace runs the full pipeline. The buffer is never mutated; the result
// is completely owned by the caller.
func (e *Engine) Trace(ctx context.Context, buf *imaging.PixelBuffer, params Params) (*Result, error) {
	if err := buf.Validate(); err != nil {
		return nil, &InputError{Field: "buffer", Reason: err.Error()}
	}
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e.resetIfNewSource(buf)

	metrics := &runMetrics{}

	processed, err := e.preprocess(ctx, buf, params, metrics)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	quantized, err := e.quantizeStage(ctx, processed, params, metrics)
	if err != nil {
		return nil, fmt.Errorf("quantize: %w", err)
	}

	result := &Result{Width: buf.Width, Height: buf.Height}
	if len(quantized.Centroids) == 0 {
		// Fully transparent input: an empty result, not an error.
		return result, nil
	}

	paths, err := e.buildPaths(ctx, processed, quantized, params, metrics)
	if err != nil {
		return nil, fmt.Errorf("trace contours: %w", err)
	}

	result.Paths = paths
	result.Palette = buildPalette(quantized.Labels, quantized.Centroids)
	if e.markup {
		result.Markup = PathMarkup(paths)
	}

	e.log.Debug("engine", "trace complete", metrics.fields())
	return result, nil
}

// resetIfNewSource drops all caches when the source buffer identity
// changes, preventing cross-image cache bleed.
func (e *Engine) resetIfNewSource(buf *imaging.PixelBuffer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source != buf {
		e.source = buf
		e.samples.Invalidate()
		e.quantCache = make(map[string]*quantize.Result)
	}
}

// pre returns the active preprocessor, preferring the backend until it
// fails.
func (e *Engine) pre() Preprocessor {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend != nil {
		return e.backend
	}
	return e.pure
}

// degrade disables the accelerated backend after a failure and reports
// the degradation; processing continues on the pure-Go path.
func (e *Engine) degrade(err error) {
	e.mu.Lock()
	e.backend = nil
	e.mu.Unlock()

	resErr := &ResourceError{Resource: "preprocessor backend", Err: err}
	e.log.Warning("engine", "backend degraded to pure-Go path", map[string]interface{}{
		"error": err.Error(),
	})
	e.emit(StatusEvent{Code: StatusDegraded, Message: resErr.Error(), Err: resErr})
}

func (e *Engine) emit(event StatusEvent) {
	if e.statusFn != nil {
		e.statusFn(event)
	}
}

// upscaleSharpen is the precache build path: sampling-level upscale plus
// the compensating sharpen.
func (e *Engine) upscaleSharpen(ctx context.Context, src *imaging.PixelBuffer, level int) (*imaging.PixelBuffer, error) {
	out, err := e.applyPre(ctx, func(p Preprocessor) (*imaging.PixelBuffer, error) {
		return p.Upscale(ctx, src, level)
	})
	if err != nil {
		return nil, err
	}
	if strength := imaging.SharpenStrength(level); strength > 0 {
		out, err = e.applyPre(ctx, func(p Preprocessor) (*imaging.PixelBuffer, error) {
			return p.Sharpen(ctx, out, strength)
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// applyPre runs one preprocessing operation, degrading to the pure path
// when the accelerated backend errors. Cancellation is never treated as
// a backend fault.
func (e *Engine) applyPre(ctx context.Context, op func(Preprocessor) (*imaging.PixelBuffer, error)) (*imaging.PixelBuffer, error) {
	pre := e.pre()
	out, err := op(pre)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if _, isPure := pre.(purePreprocessor); isPure {
		return nil, err
	}
	e.degrade(err)
	return op(e.pure)
}

func (e *Engine) preprocess(ctx context.Context, buf *imaging.PixelBuffer, params Params, metrics *runMetrics) (*imaging.PixelBuffer, error) {
	done := metrics.track("preprocess")
	defer done()

	current, ok := e.samples.Lookup(buf, params.Sampling)
	if !ok {
		var err error
		current, err = e.upscaleSharpen(ctx, buf, params.Sampling)
		if err != nil {
			return nil, err
		}
	}

	if params.BlurRadius > 0 {
		blurred, err := e.applyPre(ctx, func(p Preprocessor) (*imaging.PixelBuffer, error) {
			return p.Blur(ctx, current, params.BlurRadius*params.Sampling)
		})
		if err != nil {
			return nil, err
		}
		current = blurred
	}

	if params.Mode != imaging.ModeColor {
		reduced, err := e.applyPre(ctx, func(p Preprocessor) (*imaging.PixelBuffer, error) {
			return p.Reduce(ctx, current, params.Mode)
		})
		if err != nil {
			return nil, err
		}
		current = reduced
	}

	return current, nil
}

func (e *Engine) quantizeStage(ctx context.Context, buf *imaging.PixelBuffer, params Params, metrics *runMetrics) (*quantize.Result, error) {
	done := metrics.track("quantize")
	defer done()

	key := params.QuantizeKey()
	e.mu.Lock()
	cached, ok := e.quantCache[key]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	locked, err := params.lockedPalette()
	if err != nil {
		return nil, err
	}

	res, err := quantize.Quantize(ctx, buf, quantize.Options{
		Colors:      params.Colors,
		Binary:      params.Mode == imaging.ModeBinary,
		PaletteLock: locked,
	})
	if err != nil {
		return nil, err
	}

	if params.AntiAlias {
		res.Labels = quantize.MajorityFilter(res.Labels, buf.Width, buf.Height, 2)
	}
	if params.Noise > 0 {
		res.Labels = quantize.Denoise(res.Labels, buf.Width, buf.Height, params.Noise)
	}

	if params.RemoveBackground {
		opts := quantize.BackgroundOptions{Smart: params.SmartBackground}
		if params.BackgroundColor != "" {
			target, err := ParseHex(params.BackgroundColor)
			if err != nil {
				return nil, err
			}
			opts.Target = &target
		}
		quantize.SuppressBackground(res, buf.Width, buf.Height, opts)
	}

	e.mu.Lock()
	if len(e.quantCache) >= quantCacheCap {
		e.quantCache = make(map[string]*quantize.Result)
	}
	e.quantCache[key] = res
	e.mu.Unlock()

	return res, nil
}

func (e *Engine) buildPaths(ctx context.Context, buf *imaging.PixelBuffer, quantized *quantize.Result, params Params, metrics *runMetrics) ([]VectorPath, error) {
	done := metrics.track("paths")
	defer done()

	counts := make([]int, len(quantized.Centroids))
	for _, l := range quantized.Labels {
		if l != quantize.BackgroundLabel && int(l) < len(counts) {
			counts[l]++
		}
	}

	// Draw order: largest coverage first so background-like regions sit
	// under the detail.
	order := make([]int, 0, len(counts))
	for i, n := range counts {
		if n > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})

	minArea := contour.MinLoopArea(params.Noise, params.Sampling)
	buildOpts := pathbuild.Options{
		Fitting:  params.Fitting,
		Corner:   params.Corner,
		Sampling: params.Sampling,
	}

	paths := make([]VectorPath, 0, len(order))
	for _, label := range order {
		loops, err := contour.TraceLabel(ctx, quantized.Labels, buf.Width, buf.Height, byte(label), minArea)
		if err != nil {
			return nil, err
		}
		if len(loops) == 0 {
			continue
		}

		data := pathbuild.Build(loops, buildOpts)
		if data == "" {
			continue
		}
		c := quantized.Centroids[label]
		paths = append(paths, VectorPath{
			ID:        fmt.Sprintf("path-%d", len(paths)+1),
			PathData:  data,
			FillColor: HexOf(c.R, c.G, c.B),
			Scale:     1,
		})
	}
	return paths, nil
}
