// Package transmit drives the IR emitter line bit-by-bit and confirms the
// burst optically through a self-sense input.
package transmit

import (
	"errors"
	"time"

	"github.com/rsayer/miles-sim/internal/hw"
	"github.com/rsayer/miles-sim/internal/miles"
)

var ErrPulseExceedsBin = errors.New("pulse duration exceeds bin duration")

// Demo timing values, same as the bench controller. Real MILES timing is
// protocol data and belongs to the deployment, not to this package.
const (
	DefaultBin           = 500 * time.Microsecond
	DefaultPulse         = 250 * time.Microsecond
	DefaultConfirmWindow = 12 * time.Millisecond
	DefaultSensePoll     = 50 * time.Microsecond
	settleTime           = 10 * time.Microsecond
)

type Config struct {
	Pulse         time.Duration // asserted portion of a '1' bin
	Bin           time.Duration // time slot per bit
	ConfirmWindow time.Duration // self-sense window after the last bit
	SensePoll     time.Duration // self-sense polling step inside the window
}

func (c Config) withDefaults() Config {
	if c.Pulse <= 0 {
		c.Pulse = DefaultPulse
	}
	if c.Bin <= 0 {
		c.Bin = DefaultBin
	}
	if c.ConfirmWindow <= 0 {
		c.ConfirmWindow = DefaultConfirmWindow
	}
	if c.SensePoll <= 0 {
		c.SensePoll = DefaultSensePoll
	}
	return c
}

// ShotEvent records one completed transmission. Seq starts at 1 and only
// ever grows; the event itself is never mutated after creation.
type ShotEvent struct {
	Seq       int
	At        time.Time
	Confirmed bool
}

type Result struct {
	Confirmed bool
	Shot      ShotEvent
}

// Transmitter owns the emitter line and the shot counter. Transmit blocks
// for the whole frame plus the confirmation window; that is the contract the
// control loop accepts in exchange for deterministic bit timing.
type Transmitter struct {
	out   hw.DigitalOutput
	sense hw.DigitalInput
	clock hw.Clock
	cfg   Config
	shots int
}

func New(out hw.DigitalOutput, sense hw.DigitalInput, clock hw.Clock, cfg Config) (*Transmitter, error) {
	cfg = cfg.withDefaults()
	if cfg.Pulse > cfg.Bin {
		return nil, ErrPulseExceedsBin
	}
	return &Transmitter{out: out, sense: sense, clock: clock, cfg: cfg}, nil
}

func (t *Transmitter) Shots() int { return t.shots }

// Transmit sends the frame and then polls the self-sense input for the
// confirmation window. The shot counter increments exactly once per call,
// whatever the confirmation outcome.
func (t *Transmitter) Transmit(frame miles.Frame) Result {
	t.out.Set(false)
	t.clock.Sleep(settleTime)

	for _, bit := range frame {
		if bit != 0 {
			t.out.Set(true)
			t.clock.Sleep(t.cfg.Pulse)
			t.out.Set(false)
			if rem := t.cfg.Bin - t.cfg.Pulse; rem > 0 {
				t.clock.Sleep(rem)
			}
		} else {
			t.clock.Sleep(t.cfg.Bin)
		}
	}
	t.out.Set(false)

	confirmed := false
	deadline := t.clock.Now().Add(t.cfg.ConfirmWindow)
	for t.clock.Now().Before(deadline) {
		if t.sense.Read() {
			confirmed = true
			break
		}
		t.clock.Sleep(t.cfg.SensePoll)
	}

	t.shots++
	return Result{
		Confirmed: confirmed,
		Shot:      ShotEvent{Seq: t.shots, At: t.clock.Now(), Confirmed: confirmed},
	}
}
