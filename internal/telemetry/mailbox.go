package telemetry

import "sync"

// Mailbox is a single-slot latest-wins cell for encoded frames. Each Put
// unconditionally replaces the pending value; nothing is ever queued, so the
// consumer always sees the freshest frame and drops the intermediates.
//
// Single producer side (the hub's broadcast) and single consumer side (the
// viewer's sender) per mailbox; mailboxes are independent per viewer, so
// there is no lock ordering concern.
type Mailbox struct {
	mu    sync.Mutex
	slot  []byte
	drops uint64

	// ready carries at most one pending wakeup; the consumer drains the
	// slot in a loop after each wakeup, so a coalesced signal is enough.
	ready chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Put overwrites the pending frame and wakes the consumer. Never blocks.
func (m *Mailbox) Put(frame []byte) {
	m.mu.Lock()
	if m.slot != nil {
		m.drops++
	}
	m.slot = frame
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Take removes and returns the pending frame, if any.
func (m *Mailbox) Take() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	frame := m.slot
	m.slot = nil
	return frame, frame != nil
}

// Ready signals that a frame arrived since the last drain. Consumers must
// loop on Take after a wakeup: the slot may be overwritten again while they
// work, and the loop is what renders the newest value.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Drops returns how many pending frames were overwritten before consumption.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
