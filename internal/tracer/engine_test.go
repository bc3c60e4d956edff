package tracer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"snapvec/internal/imaging"
)

func solid(w, h int, r, g, b byte) *imaging.PixelBuffer {
	buf := imaging.NewPixelBuffer(w, h)
	for i := 0; i < len(buf.Pix); i += 4 {
		buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3] = r, g, b, 255
	}
	return buf
}

func fillRect(buf *imaging.PixelBuffer, x0, y0, x1, y1 int, r, g, b byte) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := buf.Offset(x, y)
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3] = r, g, b, 255
		}
	}
}

func TestTraceSingleColorRoundTrip(t *testing.T) {
	eng := NewEngine()
	buf := solid(40, 30, 20, 120, 220)

	res, err := eng.Trace(context.Background(), buf, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(res.Paths))
	}
	if len(res.Palette) != 1 {
		t.Fatalf("got %d palette entries, want 1", len(res.Palette))
	}
	if res.Palette[0].Ratio < 0.999 {
		t.Errorf("single color ratio = %v, want ~1.0", res.Palette[0].Ratio)
	}
	if res.Palette[0].PixelCount != 40*30 {
		t.Errorf("pixel count = %d, want %d", res.Palette[0].PixelCount, 40*30)
	}
	if res.Paths[0].FillColor != res.Palette[0].Hex {
		t.Errorf("path color %s != palette %s", res.Paths[0].FillColor, res.Palette[0].Hex)
	}
}

func TestTraceIdempotent(t *testing.T) {
	buf := solid(48, 48, 240, 240, 240)
	fillRect(buf, 8, 8, 40, 40, 180, 30, 30)
	fillRect(buf, 16, 16, 32, 32, 30, 30, 180)
	params := DefaultParams()
	params.Colors = 4

	// Fresh engines: identical buffer+params must give byte-identical
	// output with the seeded RNG.
	a, err := NewEngine().Trace(context.Background(), buf, params)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewEngine().Trace(context.Background(), buf, params)
	if err != nil {
		t.Fatal(err)
	}

	if len(a.Paths) != len(b.Paths) {
		t.Fatalf("path counts differ: %d vs %d", len(a.Paths), len(b.Paths))
	}
	for i := range a.Paths {
		if a.Paths[i].PathData != b.Paths[i].PathData {
			t.Errorf("path %d data differs", i)
		}
		if a.Paths[i].FillColor != b.Paths[i].FillColor {
			t.Errorf("path %d color differs", i)
		}
	}
}

func TestTraceTransparentImage(t *testing.T) {
	eng := NewEngine()
	buf := imaging.NewPixelBuffer(24, 24)

	res, err := eng.Trace(context.Background(), buf, DefaultParams())
	if err != nil {
		t.Fatalf("transparent image should not error: %v", err)
	}
	if len(res.Paths) != 0 || len(res.Palette) != 0 {
		t.Errorf("expected empty result, got %d paths, %d palette entries", len(res.Paths), len(res.Palette))
	}
}

func TestTraceDrawOrderByCoverage(t *testing.T) {
	buf := solid(60, 60, 250, 250, 250)
	fillRect(buf, 20, 20, 36, 36, 10, 10, 10)

	params := DefaultParams()
	params.Colors = 2
	res, err := NewEngine().Trace(context.Background(), buf, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Paths) != 2 {
		t.Fatalf("got %d paths, want 2", len(res.Paths))
	}
	// The white background covers more pixels and must come first.
	if res.Paths[0].FillColor != res.Palette[0].Hex {
		t.Errorf("first path %s is not the dominant palette color %s", res.Paths[0].FillColor, res.Palette[0].Hex)
	}
	if res.Palette[0].PixelCount <= res.Palette[1].PixelCount {
		t.Error("palette not sorted by descending count")
	}
}

func TestTraceNoiseFilterDropsSpeckle(t *testing.T) {
	buf := solid(64, 64, 255, 255, 255)
	fillRect(buf, 8, 8, 40, 40, 0, 0, 0)  // big block, kept
	fillRect(buf, 55, 55, 57, 57, 0, 0, 0) // 2×2 speckle

	params := DefaultParams()
	params.Colors = 2
	params.AntiAlias = false
	params.Noise = 20 // area threshold 20 px² at 1×

	res, err := NewEngine().Trace(context.Background(), buf, params)
	if err != nil {
		t.Fatal(err)
	}

	var black *VectorPath
	for i := range res.Paths {
		if res.Paths[i].FillColor == "#000000" {
			black = &res.Paths[i]
		}
	}
	if black == nil {
		t.Fatal("black region missing entirely")
	}
	if n := strings.Count(black.PathData, "M"); n != 1 {
		t.Errorf("speckle not filtered: %d subpaths", n)
	}
}

func TestTraceBackgroundRemoval(t *testing.T) {
	buf := solid(40, 40, 255, 255, 255)
	fillRect(buf, 10, 10, 30, 30, 200, 30, 30)

	params := DefaultParams()
	params.Colors = 2
	params.RemoveBackground = true

	res, err := NewEngine().Trace(context.Background(), buf, params)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range res.Paths {
		if p.FillColor == "#ffffff" {
			t.Error("white background still present with removal enabled")
		}
	}
	if len(res.Paths) != 1 {
		t.Fatalf("got %d paths, want 1 subject path", len(res.Paths))
	}
}

func TestTracePaletteLock(t *testing.T) {
	buf := solid(20, 20, 250, 5, 5)
	params := DefaultParams()
	params.PaletteLock = []string{"#ff0000", "#0000ff"}

	res, err := NewEngine().Trace(context.Background(), buf, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Palette) != 1 || res.Palette[0].Hex != "#ff0000" {
		t.Errorf("palette lock not applied: %+v", res.Palette)
	}
}

func TestTraceInputValidation(t *testing.T) {
	eng := NewEngine()
	ctx := context.Background()

	tests := []struct {
		name   string
		buf    *imaging.PixelBuffer
		params Params
	}{
		{"nil buffer", nil, DefaultParams()},
		{"zero size", &imaging.PixelBuffer{}, DefaultParams()},
		{"bad sampling", solid(4, 4, 0, 0, 0), func() Params { p := DefaultParams(); p.Sampling = 3; return p }()},
		{"bad mode", solid(4, 4, 0, 0, 0), func() Params { p := DefaultParams(); p.Mode = "sepia"; return p }()},
		{"bad bg color", solid(4, 4, 0, 0, 0), func() Params { p := DefaultParams(); p.BackgroundColor = "red"; return p }()},
		{"negative blur", solid(4, 4, 0, 0, 0), func() Params { p := DefaultParams(); p.BlurRadius = -1; return p }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Trace(ctx, tt.buf, tt.params)
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Errorf("want InputError, got %v", err)
			}
		})
	}
}

func TestParamsClampPolicy(t *testing.T) {
	p := Params{Colors: 200, Fitting: -5, Corner: 300, Noise: -1}.Normalize()
	if p.Colors != 64 {
		t.Errorf("Colors = %d, want 64", p.Colors)
	}
	if p.Fitting != 0 || p.Corner != 100 || p.Noise != 0 {
		t.Errorf("clamps wrong: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("normalized params should validate: %v", err)
	}
}

func TestParamsKeyChangesWithValues(t *testing.T) {
	a := DefaultParams()
	b := a
	b.Fitting = 10
	if a.Key() == b.Key() {
		t.Error("different params share a key")
	}
	// Path-only edits keep the quantize key stable.
	if a.QuantizeKey() != b.QuantizeKey() {
		t.Error("fitting change invalidated the quantize cache key")
	}
	c := a
	c.Colors = 3
	if a.QuantizeKey() == c.QuantizeKey() {
		t.Error("color change must change the quantize key")
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		r, g, b uint8
	}{
		{"#ff8800", false, 255, 136, 0},
		{"ff8800", false, 255, 136, 0},
		{"#fff", true, 0, 0, 0},
		{"nothex", true, 0, 0, 0},
	}
	for _, tt := range tests {
		c, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q) error = %v", tt.in, err)
			continue
		}
		if err == nil && (c.R != tt.r || c.G != tt.g || c.B != tt.b) {
			t.Errorf("ParseHex(%q) = %v", tt.in, c)
		}
	}
}

// failingBackend errors on every operation to exercise degradation.
type failingBackend struct{}

func (failingBackend) Upscale(ctx context.Context, src *imaging.PixelBuffer, factor int) (*imaging.PixelBuffer, error) {
	return nil, fmt.Errorf("backend exploded")
}

func (failingBackend) Sharpen(ctx context.Context, src *imaging.PixelBuffer, strength float64) (*imaging.PixelBuffer, error) {
	return nil, fmt.Errorf("backend exploded")
}

func (failingBackend) Blur(ctx context.Context, src *imaging.PixelBuffer, radius int) (*imaging.PixelBuffer, error) {
	return nil, fmt.Errorf("backend exploded")
}

func (failingBackend) Reduce(ctx context.Context, src *imaging.PixelBuffer, mode imaging.Mode) (*imaging.PixelBuffer, error) {
	return nil, fmt.Errorf("backend exploded")
}

func TestBackendDegradation(t *testing.T) {
	var events []StatusEvent
	eng := NewEngine(
		WithBackend(failingBackend{}),
		WithStatusFunc(func(ev StatusEvent) { events = append(events, ev) }),
	)

	buf := solid(20, 20, 100, 100, 100)
	params := DefaultParams()
	params.Sampling = 2 // forces an upscale through the backend

	res, err := eng.Trace(context.Background(), buf, params)
	if err != nil {
		t.Fatalf("degradation must not fail the run: %v", err)
	}
	if len(res.Paths) == 0 {
		t.Error("no paths after fallback")
	}

	found := false
	for _, ev := range events {
		if ev.Code == StatusDegraded {
			found = true
			var resErr *ResourceError
			if !errors.As(ev.Err, &resErr) {
				t.Errorf("degradation event carries %T, want ResourceError", ev.Err)
			}
		}
	}
	if !found {
		t.Error("no degradation status event emitted")
	}
}

func TestPrecomputeSkipsUpscale(t *testing.T) {
	eng := NewEngine()
	buf := solid(30, 30, 50, 150, 250)

	if err := eng.Precompute(context.Background(), buf); err != nil {
		t.Fatal(err)
	}

	params := DefaultParams()
	params.Sampling = 2
	res, err := eng.Trace(context.Background(), buf, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(res.Paths))
	}
}

func TestMarkupEmission(t *testing.T) {
	eng := NewEngine(WithMarkup(true))
	buf := solid(16, 16, 0, 128, 64)

	res, err := eng.Trace(context.Background(), buf, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Markup, `<path d="`) || !strings.Contains(res.Markup, `fill="#008040"`) {
		t.Errorf("markup missing path element: %q", res.Markup)
	}
	if !strings.Contains(res.Markup, `fill-rule="evenodd"`) {
		t.Error("markup missing even-odd fill rule")
	}
}

func TestTraceCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := NewEngine()
	if _, err := eng.Trace(ctx, solid(64, 64, 1, 2, 3), DefaultParams()); err == nil {
		t.Error("expected error from cancelled context")
	}
}
