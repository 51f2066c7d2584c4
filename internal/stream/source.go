// Package stream produces the live camera feed: a paced capture/encode loop
// that broadcasts the newest JPEG to all viewers and never buffers. Latency
// is bounded by trading completeness for recency; the per-viewer latest-wins
// delivery lives in the telemetry hub.
package stream

import (
	"context"
	"image"
)

// Source is the frame source collaborator. Capture blocks until a frame is
// available or the context is cancelled; a capture error suppresses one
// frame and is never fatal.
type Source interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Broadcaster fans an encoded frame out to all attached viewers.
type Broadcaster interface {
	BroadcastFrame(frame []byte)
	ViewerCount() int
}
