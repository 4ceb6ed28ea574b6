// Package input converts raw, noisy digital levels into stable, edge-detected
// logical events. It is polled: the control loop calls Sample once per tick.
package input

import (
	"time"

	"github.com/rsayer/miles-sim/internal/hw"
)

const (
	DefaultDebounce = 200 * time.Millisecond
	DefaultHold     = 800 * time.Millisecond
)

// Events is everything one Sample call observed: momentary button edges, the
// arm-control long-press, and the debounced sensor levels.
type Events struct {
	ArmHold      bool
	NextProtocol bool
	ToggleSide   bool
	ManualFire   bool
	Limit        bool
	Altitude     bool
}

type Pins struct {
	Arm      hw.DigitalInput
	Next     hw.DigitalInput
	Side     hw.DigitalInput
	Fire     hw.DigitalInput
	Limit    hw.DigitalInput
	Altitude hw.DigitalInput
}

type Config struct {
	Debounce time.Duration
	Hold     time.Duration
}

// button emits one edge per qualifying press. A press is qualifying when the
// raw level rises and at least the debounce interval has passed since the
// previously accepted edge. Releasing re-arms it immediately.
type button struct {
	pin          hw.DigitalInput
	debounce     time.Duration
	down         bool
	lastAccepted time.Time
}

func (b *button) sample(now time.Time) bool {
	level := b.pin.Read()
	fired := false
	if level && !b.down {
		if b.lastAccepted.IsZero() || now.Sub(b.lastAccepted) >= b.debounce {
			b.lastAccepted = now
			fired = true
		}
	}
	b.down = level
	return fired
}

// holdButton emits a single event once the raw level has stayed asserted for
// the hold interval. Any release resets it, whether or not it fired.
type holdButton struct {
	pin    hw.DigitalInput
	hold   time.Duration
	down   bool
	fired  bool
	downAt time.Time
}

func (h *holdButton) sample(now time.Time) bool {
	if !h.pin.Read() {
		h.down = false
		h.fired = false
		return false
	}
	if !h.down {
		h.down = true
		h.downAt = now
	}
	if !h.fired && now.Sub(h.downAt) >= h.hold {
		h.fired = true
		return true
	}
	return false
}

// level tracks a stable sensor level: a raw change is accepted only after the
// debounce interval has passed since the previously accepted change.
type level struct {
	pin        hw.DigitalInput
	debounce   time.Duration
	stable     bool
	lastChange time.Time
}

func (l *level) sample(now time.Time) bool {
	raw := l.pin.Read()
	if raw != l.stable && (l.lastChange.IsZero() || now.Sub(l.lastChange) >= l.debounce) {
		l.stable = raw
		l.lastChange = now
	}
	return l.stable
}

type Sampler struct {
	arm      holdButton
	next     button
	side     button
	fire     button
	limit    level
	altitude level
}

func NewSampler(pins Pins, cfg Config) *Sampler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Hold <= 0 {
		cfg.Hold = DefaultHold
	}
	return &Sampler{
		arm:      holdButton{pin: pins.Arm, hold: cfg.Hold},
		next:     button{pin: pins.Next, debounce: cfg.Debounce},
		side:     button{pin: pins.Side, debounce: cfg.Debounce},
		fire:     button{pin: pins.Fire, debounce: cfg.Debounce},
		limit:    level{pin: pins.Limit, debounce: cfg.Debounce, stable: pins.Limit.Read()},
		altitude: level{pin: pins.Altitude, debounce: cfg.Debounce, stable: pins.Altitude.Read()},
	}
}

// Sample reads every input once and returns the edges and levels observed.
func (s *Sampler) Sample(now time.Time) Events {
	return Events{
		ArmHold:      s.arm.sample(now),
		NextProtocol: s.next.sample(now),
		ToggleSide:   s.side.sample(now),
		ManualFire:   s.fire.sample(now),
		Limit:        s.limit.sample(now),
		Altitude:     s.altitude.sample(now),
	}
}
