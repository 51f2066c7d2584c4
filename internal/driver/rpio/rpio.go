// Package rpio implements driver.Motor on a Raspberry Pi: an L298N dual
// H-bridge on GPIO direction lines with hardware PWM enables, plus one servo
// on a PWM-capable pin. Requires /dev/gpiomem (or root for /dev/mem).
package rpio

import (
	"context"
	"fmt"
	"sync"

	gpio "github.com/stianeikeland/go-rpio/v4"

	"github.com/rover-control/rover/internal/driver"
)

// Motor PWM resolution: duty is quantized to 1/100 of the cycle.
const motorCycle = 100

// Servo runs at 50 Hz with a 20000-step cycle, so one duty step is exactly
// one microsecond of pulse width.
const (
	servoFreqHz = 50
	servoCycle  = 20000
)

// Pins is the BCM pin assignment for the H-bridge and servo.
//
// Enable pins must be hardware-PWM capable (BCM 12, 13, 18 or 19).
type Pins struct {
	LeftEnable uint8 `yaml:"left_enable"`
	LeftIn1    uint8 `yaml:"left_in1"`
	LeftIn2    uint8 `yaml:"left_in2"`

	RightEnable uint8 `yaml:"right_enable"`
	RightIn1    uint8 `yaml:"right_in1"`
	RightIn2    uint8 `yaml:"right_in2"`

	Servo uint8 `yaml:"servo"`
}

// DefaultPins matches the reference chassis wiring. The logical left side is
// wired to H-bridge channel B and right to channel A.
func DefaultPins() Pins {
	return Pins{
		LeftEnable:  13,
		LeftIn1:     19,
		LeftIn2:     26,
		RightEnable: 12,
		RightIn1:    23,
		RightIn2:    25,
		Servo:       18,
	}
}

var pwmCapable = map[uint8]bool{12: true, 13: true, 18: true, 19: true}

type channelPins struct {
	enable gpio.Pin
	in1    gpio.Pin
	in2    gpio.Pin
}

// Driver implements driver.Motor on go-rpio.
type Driver struct {
	mu        sync.Mutex
	channels  map[driver.Channel]channelPins
	servo     gpio.Pin
	pwmFreqHz int
	open      bool
}

// New opens the GPIO memory map and configures all pins. pwmFreqHz is the
// motor PWM frequency.
func New(pins Pins, pwmFreqHz int) (*Driver, error) {
	for _, p := range []uint8{pins.LeftEnable, pins.RightEnable, pins.Servo} {
		if !pwmCapable[p] {
			return nil, driver.NormalizeFor(fmt.Errorf("pin %d is not PWM capable", p), "rpio")
		}
	}

	if err := gpio.Open(); err != nil {
		return nil, driver.NormalizeFor(err, "rpio")
	}

	d := &Driver{
		channels: map[driver.Channel]channelPins{
			driver.ChannelLeft: {
				enable: gpio.Pin(pins.LeftEnable),
				in1:    gpio.Pin(pins.LeftIn1),
				in2:    gpio.Pin(pins.LeftIn2),
			},
			driver.ChannelRight: {
				enable: gpio.Pin(pins.RightEnable),
				in1:    gpio.Pin(pins.RightIn1),
				in2:    gpio.Pin(pins.RightIn2),
			},
		},
		servo:     gpio.Pin(pins.Servo),
		pwmFreqHz: pwmFreqHz,
		open:      true,
	}

	for _, cp := range d.channels {
		cp.in1.Mode(gpio.Output)
		cp.in2.Mode(gpio.Output)
		cp.in1.Low()
		cp.in2.Low()
		cp.enable.Mode(gpio.Pwm)
		cp.enable.Freq(pwmFreqHz * motorCycle)
		cp.enable.DutyCycle(0, motorCycle)
	}

	d.servo.Mode(gpio.Pwm)
	d.servo.Freq(servoFreqHz * servoCycle)
	d.servo.DutyCycle(0, servoCycle)

	return d, nil
}

// SetOutput drives one H-bridge channel.
func (d *Driver) SetOutput(ctx context.Context, ch driver.Channel, dir driver.Direction, duty float64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if duty < 0 || duty > 1 {
		return driver.NormalizeFor(fmt.Errorf("bad duty %v", duty), "rpio")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return driver.NormalizeFor(fmt.Errorf("driver not open"), "rpio")
	}

	cp, ok := d.channels[ch]
	if !ok {
		return driver.NormalizeFor(fmt.Errorf("channel %v out of range", ch), "rpio")
	}

	switch dir {
	case driver.Forward:
		cp.in1.High()
		cp.in2.Low()
	case driver.Reverse:
		cp.in1.Low()
		cp.in2.High()
	case driver.Brake:
		cp.in1.High()
		cp.in2.High()
	default: // Coast
		cp.in1.Low()
		cp.in2.Low()
	}

	cp.enable.DutyCycle(uint32(duty*motorCycle+0.5), motorCycle)
	return nil
}

// SetServoPulse sets the servo pulse width in microseconds. At a 20000-step
// 50 Hz cycle the duty step count equals the pulse width directly.
func (d *Driver) SetServoPulse(ctx context.Context, us int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if us < 0 || us > servoCycle {
		return driver.NormalizeFor(fmt.Errorf("bad pulse %dus", us), "rpio")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return driver.NormalizeFor(fmt.Errorf("driver not open"), "rpio")
	}

	d.servo.DutyCycle(uint32(us), servoCycle)
	return nil
}

// Close coasts all channels, drops the servo pulse and unmaps GPIO memory.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil
	}
	d.open = false

	for _, cp := range d.channels {
		cp.in1.Low()
		cp.in2.Low()
		cp.enable.DutyCycle(0, motorCycle)
	}
	d.servo.DutyCycle(0, servoCycle)

	if err := gpio.Close(); err != nil {
		return driver.NormalizeFor(err, "rpio")
	}
	return nil
}
