// Package driver defines the stable southbound contract to the motor and
// servo hardware. Implementations translate logical channel/direction/duty
// triples into whatever the underlying signal generator needs; everything
// above this interface is hardware-agnostic.
package driver

import "context"

// Channel identifies a logical drive channel. The mapping from logical
// channel to physical H-bridge output lives in the driver implementation.
type Channel int

const (
	ChannelLeft Channel = iota
	ChannelRight
)

func (c Channel) String() string {
	switch c {
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	default:
		return "unknown"
	}
}

// Direction is the commanded H-bridge configuration for one channel.
//
// Coast leaves both direction lines low (motor freewheels), Brake asserts
// both lines (motor actively opposes rotation). The integer values match the
// wire representation in status payloads.
type Direction int

const (
	Coast   Direction = 0
	Forward Direction = 1
	Reverse Direction = -1
	Brake   Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Coast:
		return "coast"
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Brake:
		return "brake"
	default:
		return "unknown"
	}
}

// Motor is the actuator driver contract.
//
// SetOutput applies a direction and PWM duty (0..1) to one channel. A duty of
// 0 with Coast or Brake stops driving the channel. Implementations must not
// block beyond the time needed for the hardware write; pacing and hold times
// are the caller's concern.
type Motor interface {
	// SetOutput applies direction and duty to a drive channel.
	SetOutput(ctx context.Context, ch Channel, dir Direction, duty float64) error

	// SetServoPulse sets the servo pulse width in microseconds.
	SetServoPulse(ctx context.Context, us int) error

	// Close releases the underlying hardware.
	Close() error
}
