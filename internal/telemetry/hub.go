// Package telemetry distributes status events and encoded camera frames to
// connected viewers. Delivery is best-effort and lossy by design: a slow
// viewer drops its own events and frames without affecting the producers or
// the other viewers.
package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/rover-control/rover/internal/drive"
)

// Event is a typed message pushed to viewers.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// StatusSource provides the controller snapshot for the periodic broadcast.
type StatusSource interface {
	Snapshot() drive.Status
}

// StatusMirror receives each broadcast snapshot on a side channel (MQTT).
type StatusMirror interface {
	PublishStatus(s drive.Status)
}

// Viewer is one connected consumer: a buffered event channel and a
// single-slot frame mailbox, both drained by the transport's sender task.
type Viewer struct {
	id     string
	events chan Event
	frames *Mailbox
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// ID returns the viewer identity.
func (v *Viewer) ID() string { return v.id }

// Events is the viewer's event stream. Events are dropped when the channel
// is full.
func (v *Viewer) Events() <-chan Event { return v.events }

// Frames is the viewer's latest-wins frame mailbox.
func (v *Viewer) Frames() *Mailbox { return v.frames }

// Done closes when the viewer is detached.
func (v *Viewer) Done() <-chan struct{} { return v.ctx.Done() }

func (v *Viewer) close() {
	v.once.Do(func() {
		v.cancel()
	})
}

// Hub manages the viewer registry and the periodic status broadcast.
type Hub struct {
	mu      sync.RWMutex
	viewers map[string]*Viewer

	source   StatusSource
	mirror   StatusMirror
	interval time.Duration
	buffer   int
}

// NewHub creates a hub broadcasting source snapshots every interval. buffer
// sizes each viewer's event channel.
func NewHub(source StatusSource, interval time.Duration, buffer int) *Hub {
	return &Hub{
		viewers:  make(map[string]*Viewer),
		source:   source,
		interval: interval,
		buffer:   buffer,
	}
}

// SetMirror attaches an optional status mirror.
func (h *Hub) SetMirror(m StatusMirror) {
	h.mu.Lock()
	h.mirror = m
	h.mu.Unlock()
}

// Attach registers a new viewer.
func (h *Hub) Attach() *Viewer {
	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewer{
		id:     xid.New().String(),
		events: make(chan Event, h.buffer),
		frames: NewMailbox(),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.viewers[v.id] = v
	h.mu.Unlock()
	return v
}

// Detach removes a viewer and cancels its pending deliveries.
func (h *Hub) Detach(id string) {
	h.mu.Lock()
	v, ok := h.viewers[id]
	if ok {
		delete(h.viewers, id)
	}
	h.mu.Unlock()

	if ok {
		v.close()
	}
}

// ViewerCount returns the number of attached viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Publish pushes an event to every viewer, dropping the delivery for any
// viewer whose channel is full.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	viewers := make([]*Viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.RUnlock()

	for _, v := range viewers {
		select {
		case <-v.ctx.Done():
		case v.events <- ev:
		default:
			// Slow viewer: drop this delivery only.
		}
	}
}

// BroadcastFrame overwrites every viewer's frame mailbox with the newest
// encoded frame. Never blocks.
func (h *Hub) BroadcastFrame(frame []byte) {
	h.mu.RLock()
	viewers := make([]*Viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.RUnlock()

	for _, v := range viewers {
		v.frames.Put(frame)
	}
}

// Run drives the periodic status broadcast until ctx is cancelled, then
// detaches all viewers.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case <-ticker.C:
			h.broadcastStatus()
		}
	}
}

func (h *Hub) broadcastStatus() {
	snap := h.source.Snapshot()

	if h.ViewerCount() > 0 {
		h.Publish(Event{Type: "status", Data: snap})
	}

	h.mu.RLock()
	mirror := h.mirror
	h.mu.RUnlock()
	if mirror != nil {
		mirror.PublishStatus(snap)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	viewers := h.viewers
	h.viewers = make(map[string]*Viewer)
	h.mu.Unlock()

	for _, v := range viewers {
		v.close()
	}
	if len(viewers) > 0 {
		log.Printf("telemetry: detached %d viewer(s) on shutdown", len(viewers))
	}
}
