package quantize

import (
	"bytes"
	"context"
	"testing"

	"snapvec/internal/imaging"
)

// checkerboard fills a buffer with two alternating colors in big blocks.
func checkerboard(w, h, block int, a, b [3]byte) *imaging.PixelBuffer {
	buf := imaging.NewPixelBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := a
			if ((x/block)+(y/block))%2 == 1 {
				c = b
			}
			i := buf.Offset(x, y)
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3] = c[0], c[1], c[2], 255
		}
	}
	return buf
}

func TestQuantizeLabelCountBound(t *testing.T) {
	ctx := context.Background()
	buf := checkerboard(64, 64, 16, [3]byte{255, 0, 0}, [3]byte{0, 0, 255})

	tests := []struct {
		name   string
		colors int
		maxK   int
	}{
		{"two colors requested", 2, 2},
		{"more than distinct", 16, 2},
		{"clamped low", 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Quantize(ctx, buf, Options{Colors: tt.colors})
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Centroids) > tt.maxK {
				t.Errorf("got %d centroids, want <= %d", len(res.Centroids), tt.maxK)
			}
			if len(res.Centroids) < 1 {
				t.Error("expected at least one centroid for a visible image")
			}
		})
	}
}

func TestQuantizeTransparentImage(t *testing.T) {
	buf := imaging.NewPixelBuffer(16, 16) // all alpha 0
	res, err := Quantize(context.Background(), buf, Options{Colors: 8})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Centroids) != 0 {
		t.Errorf("expected empty palette, got %d centroids", len(res.Centroids))
	}
	for i, l := range res.Labels {
		if l != BackgroundLabel {
			t.Fatalf("pixel %d labeled %d, want sentinel", i, l)
		}
	}
}

func TestQuantizeDeterministic(t *testing.T) {
	buf := checkerboard(80, 60, 10, [3]byte{200, 30, 30}, [3]byte{30, 30, 200})

	a, err := Quantize(context.Background(), buf, Options{Colors: 4})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Quantize(context.Background(), buf, Options{Colors: 4})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Labels, b.Labels) {
		t.Error("label maps differ between identical runs")
	}
	if len(a.Centroids) != len(b.Centroids) {
		t.Fatalf("centroid counts differ: %d vs %d", len(a.Centroids), len(b.Centroids))
	}
	for i := range a.Centroids {
		if a.Centroids[i] != b.Centroids[i] {
			t.Errorf("centroid %d differs: %v vs %v", i, a.Centroids[i], b.Centroids[i])
		}
	}
}

func TestQuantizeSeparatesColors(t *testing.T) {
	buf := checkerboard(64, 64, 32, [3]byte{250, 10, 10}, [3]byte{10, 10, 250})
	res, err := Quantize(context.Background(), buf, Options{Colors: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Centroids) != 2 {
		t.Fatalf("got %d centroids, want 2", len(res.Centroids))
	}
	// Top-left block and top-right block must land in different clusters.
	if res.Labels[0] == res.Labels[40] {
		t.Error("distinct colors share a label")
	}
}

func TestQuantizePaletteLock(t *testing.T) {
	buf := checkerboard(32, 32, 16, [3]byte{240, 0, 0}, [3]byte{0, 0, 240})
	locked := []Centroid{{R: 255}, {B: 255}}

	res, err := Quantize(context.Background(), buf, Options{Colors: 8, PaletteLock: locked})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Centroids) != 2 || res.Centroids[0] != locked[0] || res.Centroids[1] != locked[1] {
		t.Errorf("palette lock not honored: %v", res.Centroids)
	}
}

func TestQuantizeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	buf := checkerboard(512, 512, 16, [3]byte{255, 0, 0}, [3]byte{0, 255, 0})
	if _, err := Quantize(ctx, buf, Options{Colors: 4}); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestMajorityFilterSmoothsSpeckle(t *testing.T) {
	// A lone label-1 pixel inside a label-0 field has 8 opposing
	// neighbors; the quorum of 5 flips it.
	w, h := 5, 5
	labels := make([]byte, w*h)
	labels[2*w+2] = 1

	out := MajorityFilter(labels, w, h, 1)
	if out[2*w+2] != 0 {
		t.Errorf("speckle survived majority filter: %d", out[2*w+2])
	}
}

func TestMajorityFilterKeepsSolidEdge(t *testing.T) {
	// A straight boundary pixel has at most 5 same-label neighbors on the
	// far side only when diagonal-adjacent; a clean half/half split gives
	// the opposing label only 3 of 8 and must not flip.
	w, h := 6, 6
	labels := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 3; x < w; x++ {
			labels[y*w+x] = 1
		}
	}
	out := MajorityFilter(labels, w, h, 2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := byte(0)
			if x >= 3 {
				want = 1
			}
			if out[y*w+x] != want {
				t.Fatalf("pixel (%d,%d) flipped to %d", x, y, out[y*w+x])
			}
		}
	}
}

func TestDenoiseQuorum(t *testing.T) {
	w, h := 3, 3
	mk := func(neighbors int) []byte {
		labels := make([]byte, w*h)
		labels[4] = 1 // center
		// Fill `neighbors` of the 8 surrounding cells with label 0 and
		// the rest with label 1.
		idx := []int{0, 1, 2, 3, 5, 6, 7, 8}
		for i, p := range idx {
			if i >= neighbors {
				labels[p] = 1
			}
		}
		return labels
	}

	// 6 opposing neighbors flips at low noise.
	out := Denoise(mk(6), w, h, 10)
	if out[4] != 0 {
		t.Error("center should flip with 6 opposing neighbors at low noise")
	}
	// 5 opposing neighbors only flips at high noise.
	out = Denoise(mk(5), w, h, 10)
	if out[4] != 1 {
		t.Error("center flipped with 5 neighbors at low noise")
	}
	out = Denoise(mk(5), w, h, 90)
	if out[4] != 0 {
		t.Error("center should flip with 5 neighbors at high noise")
	}
}

// eyeImage builds a white image with a dark ring enclosing a white "eye":
// border background, subject ring, and an interior region sharing the
// background color.
func eyeImage(size int) *imaging.PixelBuffer {
	buf := imaging.NewPixelBuffer(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := buf.Offset(x, y)
			c := byte(255) // white background and eye
			ring := x >= size/4 && x < size*3/4 && y >= size/4 && y < size*3/4
			inner := x >= size*3/8 && x < size*5/8 && y >= size*3/8 && y < size*5/8
			if ring && !inner {
				c = 10 // dark subject ring
			}
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3] = c, c, c, 255
		}
	}
	return buf
}

func TestBackgroundSmartFloodPreservesEye(t *testing.T) {
	size := 32
	buf := eyeImage(size)
	res, err := Quantize(context.Background(), buf, Options{Colors: 2})
	if err != nil {
		t.Fatal(err)
	}

	smart := &Result{Labels: append([]byte(nil), res.Labels...), Centroids: res.Centroids}
	SuppressBackground(smart, size, size, BackgroundOptions{Smart: true})

	center := size/2*size + size/2
	if smart.Labels[0] != BackgroundLabel {
		t.Error("border background not suppressed in smart mode")
	}
	if smart.Labels[center] == BackgroundLabel {
		t.Error("enclosed eye region was suppressed in smart mode")
	}

	blanket := &Result{Labels: append([]byte(nil), res.Labels...), Centroids: res.Centroids}
	SuppressBackground(blanket, size, size, BackgroundOptions{Smart: false})
	if blanket.Labels[center] != BackgroundLabel {
		t.Error("eye region survived blanket suppression")
	}
}

func TestBackgroundExplicitTarget(t *testing.T) {
	size := 16
	buf := checkerboard(size, size, 8, [3]byte{255, 255, 255}, [3]byte{0, 0, 0})
	res, err := Quantize(context.Background(), buf, Options{Colors: 2})
	if err != nil {
		t.Fatal(err)
	}

	target := Centroid{R: 0, G: 0, B: 0}
	SuppressBackground(res, size, size, BackgroundOptions{Target: &target})
	// Every near-black pixel is gone, whites remain.
	for p, l := range res.Labels {
		i := p * 4
		if buf.Pix[i] == 0 && l != BackgroundLabel {
			t.Fatalf("black pixel %d not suppressed", p)
		}
		if buf.Pix[i] == 255 && l == BackgroundLabel {
			t.Fatalf("white pixel %d wrongly suppressed", p)
		}
	}
}

func TestVisibleCount(t *testing.T) {
	labels := []byte{0, 1, BackgroundLabel, 2, BackgroundLabel}
	if got := VisibleCount(labels); got != 3 {
		t.Errorf("VisibleCount = %d, want 3", got)
	}
}
