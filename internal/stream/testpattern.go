package stream

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
)

// TestPattern is a synthetic frame source: a scrolling gradient with a frame
// counter baked into the pixel data. It stands in for the camera when the
// daemon runs off-target, and gives tests a source that never fails.
type TestPattern struct {
	width  int
	height int
	seq    atomic.Uint64
}

// NewTestPattern creates a test pattern source of the given dimensions.
func NewTestPattern(width, height int) *TestPattern {
	return &TestPattern{width: width, height: height}
}

// Capture renders the next pattern frame.
func (t *TestPattern) Capture(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	n := t.seq.Add(1)
	shift := uint8(n % 256)

	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x) + shift,
				G: uint8(y),
				B: shift,
				A: 255,
			})
		}
	}
	return img, nil
}
