package stream

import (
	"bytes"
	"context"
	"image/jpeg"
	"log"
	"time"
)

// Clock abstracts time for deterministic pacing tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Producer pulls frames from the source, encodes them at a fixed JPEG
// quality and broadcasts the bytes. It paces itself to the target period by
// sleeping the remainder of each cycle; when no viewers are attached the
// capture and encode are skipped entirely.
type Producer struct {
	source  Source
	sink    Broadcaster
	period  time.Duration
	quality int
	clock   Clock
}

// NewProducer creates a producer on the system clock.
func NewProducer(source Source, sink Broadcaster, period time.Duration, quality int) *Producer {
	return NewProducerWithClock(source, sink, period, quality, systemClock{})
}

// NewProducerWithClock creates a producer with an injected clock.
func NewProducerWithClock(source Source, sink Broadcaster, period time.Duration, quality int, clock Clock) *Producer {
	return &Producer{
		source:  source,
		sink:    sink,
		period:  period,
		quality: quality,
		clock:   clock,
	}
}

// Run drives the capture loop until ctx is cancelled. Capture and encode
// failures drop the frame and continue.
func (p *Producer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		start := p.clock.Now()
		p.Cycle(ctx)

		if remain := p.period - p.clock.Now().Sub(start); remain > 0 {
			p.clock.Sleep(remain)
		}
	}
}

// Cycle performs one capture/encode/broadcast pass.
func (p *Producer) Cycle(ctx context.Context) {
	if p.sink.ViewerCount() == 0 {
		return
	}

	img, err := p.source.Capture(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("stream: capture failed, dropping frame: %v", err)
		}
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		log.Printf("stream: encode failed, dropping frame: %v", err)
		return
	}

	p.sink.BroadcastFrame(buf.Bytes())
}
