package drive

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rover-control/rover/internal/driver"
)

// Commanded magnitudes below epsilon resolve to coast.
const epsilon = 1e-3

// Controller owns the actuation state. One mutex covers intent, calibration,
// servo position and the per-side output state; it is held for the whole
// read+compute+write of a tick and for the intentionally bounded kick/brake
// holds, and is the only lock in the package.
type Controller struct {
	mu    sync.Mutex
	motor driver.Motor
	clock Clock

	tick     time.Duration
	watchdog time.Duration // 0 disables the staleness check

	cal    Calibration
	intent Intent
	out    map[Side]MotorOutput

	servoAngle float64
}

// NewController creates a controller on the system clock. watchdog is the
// staleness window after which the apply loop neutralizes the effective
// intent; 0 disables it.
func NewController(motor driver.Motor, cal Calibration, tick, watchdog time.Duration) *Controller {
	return NewControllerWithClock(motor, cal, tick, watchdog, SystemClock())
}

// NewControllerWithClock creates a controller with an injected clock.
func NewControllerWithClock(motor driver.Motor, cal Calibration, tick, watchdog time.Duration, clock Clock) *Controller {
	return &Controller{
		motor:    motor,
		clock:    clock,
		tick:     tick,
		watchdog: watchdog,
		cal:      cal,
		out: map[Side]MotorOutput{
			SideLeft:  {Dir: driver.Coast, Duty: 0},
			SideRight: {Dir: driver.Coast, Duty: 0},
		},
		servoAngle: clampAngle(cal.Servo.DefaultDeg, cal.Servo),
	}
}

// SetIntent publishes a new drive setpoint. Values must be finite and in
// [-1,1]; a rejected command leaves the prior intent untouched.
func (c *Controller) SetIntent(left, right float64) error {
	if !inRange(left, -1, 1) || !inRange(right, -1, 1) {
		return fmt.Errorf("drive values must be in [-1,1]: %w", driver.ErrInvalidRange)
	}

	c.mu.Lock()
	c.intent = Intent{Left: left, Right: right, Stamp: c.clock.Now()}
	c.mu.Unlock()
	return nil
}

// Intent returns the current drive intent.
func (c *Controller) Intent() Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intent
}

// ApplyTick runs one tick of the actuation loop: read intent, compute each
// side's output, write it to the driver. When the watchdog window has
// elapsed the effective input is neutralized for this tick only; the stored
// intent is not rewritten and no brake is applied.
func (c *Controller) ApplyTick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	left, right := c.intent.Left, c.intent.Right
	if c.watchdog > 0 && c.clock.Now().Sub(c.intent.Stamp) > c.watchdog {
		left, right = 0, 0
	}

	if err := c.applySideLocked(ctx, SideLeft, left); err != nil {
		return err
	}
	return c.applySideLocked(ctx, SideRight, right)
}

// applySideLocked computes and writes one side's output. Caller holds c.mu.
func (c *Controller) applySideLocked(ctx context.Context, side Side, value float64) error {
	ch := channelFor(side)

	raw := clamp(value, -1, 1) * c.cal.Polarity.value(side)
	mag := math.Abs(raw) * clamp(c.cal.SpeedLimit, 0, 1) * clamp(c.cal.Trim.value(side), 0, 2)

	if mag < epsilon {
		if err := c.motor.SetOutput(ctx, ch, driver.Coast, 0); err != nil {
			return err
		}
		c.out[side] = MotorOutput{Dir: driver.Coast, Duty: 0}
		return nil
	}

	dir := driver.Forward
	if raw < 0 {
		dir = driver.Reverse
	}

	boosted := math.Pow(mag, c.cal.Gamma)
	duty := c.cal.DutyMin + (c.cal.DutyMax-c.cal.DutyMin)*math.Min(1, boosted)

	// One-shot kick on the stop-to-move transition; never re-fires while
	// the side is already moving.
	if c.out[side].Duty == 0 {
		kick := math.Max(duty, c.cal.KickDuty)
		if err := c.motor.SetOutput(ctx, ch, dir, kick); err != nil {
			return err
		}
		c.clock.Sleep(c.cal.KickDuration)
	}

	if err := c.motor.SetOutput(ctx, ch, dir, duty); err != nil {
		return err
	}
	c.out[side] = MotorOutput{Dir: dir, Duty: duty}
	return nil
}

// Stop performs the braked stop: both direction lines asserted with PWM
// forced to 0, held for BrakeDuration, then settled to coast. The intent is
// zeroed so the loop keeps the rover stopped. Stop is idempotent.
func (c *Controller) Stop(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.intent = Intent{Stamp: c.clock.Now()}

	for _, side := range sides {
		if err := c.motor.SetOutput(ctx, channelFor(side), driver.Brake, 0); err != nil {
			return Status{}, err
		}
	}
	c.clock.Sleep(c.cal.BrakeDuration)

	for _, side := range sides {
		if err := c.motor.SetOutput(ctx, channelFor(side), driver.Coast, 0); err != nil {
			return Status{}, err
		}
		c.out[side] = MotorOutput{Dir: driver.Coast, Duty: 0}
	}

	return c.snapshotLocked(), nil
}

// NeutralStop coasts both sides without a brake hold. Used for the final
// write on shutdown.
func (c *Controller) NeutralStop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.intent = Intent{Stamp: c.clock.Now()}

	for _, side := range sides {
		if err := c.motor.SetOutput(ctx, channelFor(side), driver.Coast, 0); err != nil {
			return err
		}
		c.out[side] = MotorOutput{Dir: driver.Coast, Duty: 0}
	}
	return nil
}

// SetSpeedLimit sets the global speed limit in [0,1].
func (c *Controller) SetSpeedLimit(v float64) error {
	if !inRange(v, 0, 1) {
		return fmt.Errorf("speed limit must be in [0,1]: %w", driver.ErrInvalidRange)
	}

	c.mu.Lock()
	c.cal.SpeedLimit = v
	c.mu.Unlock()
	return nil
}

// SetTrim sets one side's trim in [0,2].
func (c *Controller) SetTrim(side Side, v float64) error {
	if side != SideLeft && side != SideRight {
		return fmt.Errorf("unknown side %q: %w", side, driver.ErrInvalidRange)
	}
	if !inRange(v, 0, 2) {
		return fmt.Errorf("trim must be in [0,2]: %w", driver.ErrInvalidRange)
	}

	c.mu.Lock()
	c.cal.Trim.set(side, v)
	c.mu.Unlock()
	return nil
}

// ServoSet positions the servo by absolute angle or delta and optionally
// adjusts the pulse trim. Angles clamp to the calibrated range.
func (c *Controller) ServoSet(ctx context.Context, req ServoRequest) (ServoStatus, error) {
	if req.AngleDeg == nil && req.DeltaDeg == nil && req.TrimUS == nil {
		return ServoStatus{}, fmt.Errorf("servo_set requires angle, delta or trim_us: %w", driver.ErrInvalidRange)
	}
	if req.AngleDeg != nil && !isFinite(*req.AngleDeg) {
		return ServoStatus{}, fmt.Errorf("servo angle must be finite: %w", driver.ErrInvalidRange)
	}
	if req.DeltaDeg != nil && !isFinite(*req.DeltaDeg) {
		return ServoStatus{}, fmt.Errorf("servo delta must be finite: %w", driver.ErrInvalidRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if req.TrimUS != nil {
		c.cal.Servo.TrimUS = *req.TrimUS
	}

	angle := c.servoAngle
	switch {
	case req.AngleDeg != nil:
		angle = clampAngle(*req.AngleDeg, c.cal.Servo)
	case req.DeltaDeg != nil:
		angle = clampAngle(c.servoAngle+*req.DeltaDeg, c.cal.Servo)
	}

	us := servoPulseUS(angle, c.cal.Servo)
	if err := c.motor.SetServoPulse(ctx, us); err != nil {
		return ServoStatus{}, err
	}
	c.servoAngle = angle

	return c.servoStatusLocked(), nil
}

// ResetServo drives the servo to its calibrated default position.
func (c *Controller) ResetServo(ctx context.Context) error {
	deg := c.cal.Servo.DefaultDeg
	_, err := c.ServoSet(ctx, ServoRequest{AngleDeg: &deg})
	return err
}

// Snapshot returns the full status as last written by the loop.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Status {
	return Status{
		Left:       c.out[SideLeft],
		Right:      c.out[SideRight],
		PWMFreqHz:  c.cal.PWMFreqHz,
		DutyMin:    c.cal.DutyMin,
		DutyMax:    c.cal.DutyMax,
		SpeedLimit: c.cal.SpeedLimit,
		Trim:       c.cal.Trim,
		Polarity:   c.cal.Polarity,
		Servo:      c.servoStatusLocked(),
	}
}

func (c *Controller) servoStatusLocked() ServoStatus {
	return ServoStatus{
		AngleDeg: c.servoAngle,
		PulseUS:  servoPulseUS(c.servoAngle, c.cal.Servo),
		MinDeg:   c.cal.Servo.MinDeg,
		MaxDeg:   c.cal.Servo.MaxDeg,
		TrimUS:   c.cal.Servo.TrimUS,
	}
}

func channelFor(side Side) driver.Channel {
	if side == SideLeft {
		return driver.ChannelLeft
	}
	return driver.ChannelRight
}

// servoPulseUS maps an angle to a pulse width over the full 180 degree span.
func servoPulseUS(deg float64, cal ServoCalibration) int {
	us := float64(cal.MinUS) + float64(cal.MaxUS-cal.MinUS)*(deg/180.0)
	return int(us) + cal.TrimUS
}

func clampAngle(deg float64, cal ServoCalibration) float64 {
	return clamp(deg, cal.MinDeg, cal.MaxDeg)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func inRange(v, lo, hi float64) bool {
	return isFinite(v) && v >= lo && v <= hi
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
