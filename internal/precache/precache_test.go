package precache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"snapvec/internal/imaging"
)

func scaleBuild(calls *atomic.Int32) BuildFunc {
	return func(ctx context.Context, src *imaging.PixelBuffer, level int) (*imaging.PixelBuffer, error) {
		if calls != nil {
			calls.Add(1)
		}
		return imaging.NewPixelBuffer(src.Width*level, src.Height*level), nil
	}
}

func TestWarmAndLookup(t *testing.T) {
	src := imaging.NewPixelBuffer(10, 8)
	c := New()

	var calls atomic.Int32
	if err := c.Warm(context.Background(), src, []int{1, 2, 4}, scaleBuild(&calls)); err != nil {
		t.Fatalf("warm failed: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("cached levels = %d, want 3", c.Len())
	}
	if calls.Load() != 3 {
		t.Errorf("build calls = %d, want 3", calls.Load())
	}

	for _, level := range []int{1, 2, 4} {
		buf, ok := c.Lookup(src, level)
		if !ok {
			t.Fatalf("level %d missing after warm", level)
		}
		if buf.Width != src.Width*level || buf.Height != src.Height*level {
			t.Errorf("level %d dims = %dx%d, want %dx%d",
				level, buf.Width, buf.Height, src.Width*level, src.Height*level)
		}
	}
}

func TestWarmSkipsCachedLevels(t *testing.T) {
	src := imaging.NewPixelBuffer(10, 8)
	c := New()

	var calls atomic.Int32
	if err := c.Warm(context.Background(), src, []int{1, 2}, scaleBuild(&calls)); err != nil {
		t.Fatalf("first warm failed: %v", err)
	}
	if err := c.Warm(context.Background(), src, []int{1, 2, 4}, scaleBuild(&calls)); err != nil {
		t.Fatalf("second warm failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("build calls = %d, want 3 (second warm rebuilds only level 4)", calls.Load())
	}
}

func TestNewSourceInvalidatesEntries(t *testing.T) {
	first := imaging.NewPixelBuffer(10, 8)
	second := imaging.NewPixelBuffer(10, 8)
	c := New()

	if err := c.Warm(context.Background(), first, []int{1, 2}, scaleBuild(nil)); err != nil {
		t.Fatalf("warm failed: %v", err)
	}
	if _, ok := c.Lookup(second, 2); ok {
		t.Error("lookup with a different source must miss")
	}

	if err := c.Warm(context.Background(), second, []int{1}, scaleBuild(nil)); err != nil {
		t.Fatalf("rewarm failed: %v", err)
	}
	if _, ok := c.Lookup(first, 2); ok {
		t.Error("old source entries must be dropped after rewarm")
	}
	if c.Len() != 1 {
		t.Errorf("cached levels = %d, want 1", c.Len())
	}
}

func TestWarmReportsFirstError(t *testing.T) {
	src := imaging.NewPixelBuffer(10, 8)
	c := New()

	buildErr := errors.New("upscale failed")
	build := func(ctx context.Context, src *imaging.PixelBuffer, level int) (*imaging.PixelBuffer, error) {
		if level == 2 {
			return nil, buildErr
		}
		return imaging.NewPixelBuffer(src.Width*level, src.Height*level), nil
	}

	err := c.Warm(context.Background(), src, []int{1, 2, 4}, build)
	if !errors.Is(err, buildErr) {
		t.Fatalf("err = %v, want %v", err, buildErr)
	}
	// Successful levels stay usable despite the failure.
	if _, ok := c.Lookup(src, 4); !ok {
		t.Error("level 4 should be cached even when level 2 failed")
	}
	if _, ok := c.Lookup(src, 2); ok {
		t.Error("failed level must not be cached")
	}
}

func TestInvalidate(t *testing.T) {
	src := imaging.NewPixelBuffer(10, 8)
	c := New()

	if err := c.Warm(context.Background(), src, []int{1, 2}, scaleBuild(nil)); err != nil {
		t.Fatalf("warm failed: %v", err)
	}
	c.Invalidate()
	if c.Len() != 0 {
		t.Errorf("cached levels after invalidate = %d, want 0", c.Len())
	}
	if _, ok := c.Lookup(src, 1); ok {
		t.Error("lookup after invalidate must miss")
	}
}
