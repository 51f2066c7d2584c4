// Package fake provides an in-memory motor driver for testing. It records
// every write so tests can assert on the exact hardware command sequence.
package fake

import (
	"context"
	"sync"

	"github.com/rover-control/rover/internal/driver"
)

// Write is one recorded SetOutput call.
type Write struct {
	Channel   driver.Channel
	Direction driver.Direction
	Duty      float64
}

// Driver implements driver.Motor against in-memory state.
type Driver struct {
	mu sync.Mutex

	// Last applied output per channel.
	outputs map[driver.Channel]Write

	// Full write history, in call order.
	history []Write

	// Last servo pulse width in microseconds.
	servoUS int

	// Error injection: when non-nil, the corresponding call fails with it.
	failOutput error
	failServo  error

	closed bool
}

// New creates a fake driver with all channels coasting.
func New() *Driver {
	return &Driver{
		outputs: make(map[driver.Channel]Write),
	}
}

// SetOutput records the write and applies it to the in-memory state.
func (d *Driver) SetOutput(ctx context.Context, ch driver.Channel, dir driver.Direction, duty float64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failOutput != nil {
		return d.failOutput
	}

	w := Write{Channel: ch, Direction: dir, Duty: duty}
	d.outputs[ch] = w
	d.history = append(d.history, w)
	return nil
}

// SetServoPulse records the servo pulse width.
func (d *Driver) SetServoPulse(ctx context.Context, us int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failServo != nil {
		return d.failServo
	}

	d.servoUS = us
	return nil
}

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Output returns the last write applied to a channel.
func (d *Driver) Output(ch driver.Channel) Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputs[ch]
}

// History returns a copy of the full write history.
func (d *Driver) History() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Write, len(d.history))
	copy(out, d.history)
	return out
}

// HistoryFor returns the write history for one channel.
func (d *Driver) HistoryFor(ch driver.Channel) []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Write
	for _, w := range d.history {
		if w.Channel == ch {
			out = append(out, w)
		}
	}
	return out
}

// ServoPulse returns the last servo pulse width.
func (d *Driver) ServoPulse() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.servoUS
}

// FailSetOutput makes subsequent SetOutput calls return err (nil to clear).
func (d *Driver) FailSetOutput(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOutput = err
}

// FailSetServoPulse makes subsequent SetServoPulse calls return err (nil to clear).
func (d *Driver) FailSetServoPulse(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failServo = err
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
