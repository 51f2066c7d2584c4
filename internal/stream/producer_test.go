package stream

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSink counts viewers and records broadcast frames.
type stubSink struct {
	mu      sync.Mutex
	viewers int
	frames  [][]byte
}

func (s *stubSink) BroadcastFrame(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *stubSink) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewers
}

func (s *stubSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// countingSource counts captures and can fail on demand.
type countingSource struct {
	mu       sync.Mutex
	captures int
	err      error
}

func (s *countingSource) Capture(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures++
	if s.err != nil {
		return nil, s.err
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (s *countingSource) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

// stillClock makes Run spin without real sleeps.
type stillClock struct{}

func (stillClock) Now() time.Time        { return time.Unix(0, 0) }
func (stillClock) Sleep(d time.Duration) {}

func TestCycleSkipsWithoutViewers(t *testing.T) {
	source := &countingSource{}
	sink := &stubSink{}
	p := NewProducerWithClock(source, sink, time.Second/12, 40, stillClock{})

	p.Cycle(context.Background())
	assert.Equal(t, 0, source.Captures(), "no capture without viewers")
	assert.Empty(t, sink.Frames())
}

func TestCycleEncodesAndBroadcasts(t *testing.T) {
	source := &countingSource{}
	sink := &stubSink{viewers: 1}
	p := NewProducerWithClock(source, sink, time.Second/12, 40, stillClock{})

	p.Cycle(context.Background())

	frames := sink.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, 1, source.Captures())

	// The broadcast payload is a decodable JPEG.
	img, err := jpeg.Decode(bytes.NewReader(frames[0]))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestCycleDropsFrameOnCaptureError(t *testing.T) {
	source := &countingSource{err: errors.New("camera unplugged")}
	sink := &stubSink{viewers: 1}
	p := NewProducerWithClock(source, sink, time.Second/12, 40, stillClock{})

	p.Cycle(context.Background())
	assert.Empty(t, sink.Frames(), "failed capture drops the frame")

	// Recovery: the next cycle succeeds.
	source.mu.Lock()
	source.err = nil
	source.mu.Unlock()
	p.Cycle(context.Background())
	assert.Len(t, sink.Frames(), 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	source := &countingSource{}
	sink := &stubSink{viewers: 1}
	p := NewProducer(source, sink, time.Millisecond, 40)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("producer did not stop")
	}

	assert.Greater(t, source.Captures(), 0)
}

func TestTestPatternFramesVary(t *testing.T) {
	pattern := NewTestPattern(16, 16)

	a, err := pattern.Capture(context.Background())
	require.NoError(t, err)
	b, err := pattern.Capture(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, a.At(0, 0), b.At(0, 0), "consecutive frames differ")
}

func TestTestPatternHonorsCancellation(t *testing.T) {
	pattern := NewTestPattern(16, 16)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pattern.Capture(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
