package opencv

import (
	"fmt"
	"runtime"
	"sync"

	"gocv.io/x/gocv"

	"snapvec/internal/imaging"
)

// safeMat guards a gocv.Mat against double-close and use-after-close.
// Native memory is released explicitly; the finalizer is a last resort.
type safeMat struct {
	mu     sync.Mutex
	mat    gocv.Mat
	closed bool
}

func newSafeMat(mat gocv.Mat) *safeMat {
	sm := &safeMat{mat: mat}
	runtime.SetFinalizer(sm, (*safeMat).Close)
	return sm
}

func (sm *safeMat) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return
	}
	sm.closed = true
	if !sm.mat.Empty() {
		sm.mat.Close()
	}
	runtime.SetFinalizer(sm, nil)
}

// fromBuffer copies an RGBA pixel buffer into a CV8UC4 mat.
func fromBuffer(buf *imaging.PixelBuffer) (*safeMat, error) {
	mat, err := gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC4, buf.Pix)
	if err != nil {
		return nil, fmt.Errorf("mat from %dx%d buffer: %w", buf.Width, buf.Height, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("mat from %dx%d buffer is empty", buf.Width, buf.Height)
	}
	return newSafeMat(mat), nil
}

// toBuffer copies a CV8UC4 mat back into a pixel buffer.
func toBuffer(sm *safeMat) (*imaging.PixelBuffer, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed || sm.mat.Empty() {
		return nil, fmt.Errorf("mat is closed or empty")
	}
	data, err := sm.mat.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("mat to bytes: %w", err)
	}
	buf := imaging.NewPixelBuffer(sm.mat.Cols(), sm.mat.Rows())
	copy(buf.Pix, data)
	return buf, nil
}
