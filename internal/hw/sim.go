package hw

import (
	"sync"
	"sync/atomic"
	"time"
)

// SimClock is a deterministic clock. Sleep advances it instead of blocking,
// so code written against Clock runs instantly and repeatably under test.
type SimClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewSimClock() *SimClock {
	// Arbitrary fixed epoch; only differences matter.
	return &SimClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *SimClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SimClock) Sleep(d time.Duration) { c.Advance(d) }

func (c *SimClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SimPin is a digital input whose level can be set from another goroutine
// (the websocket layer pokes it, the control loop reads it).
type SimPin struct {
	level atomic.Bool
}

func NewSimPin(level bool) *SimPin {
	p := &SimPin{}
	p.level.Store(level)
	return p
}

func (p *SimPin) Read() bool     { return p.level.Load() }
func (p *SimPin) Set(level bool) { p.level.Store(level) }

// Transition is one recorded level change on a SimOutput.
type Transition struct {
	Level bool
	At    time.Time
}

// SimOutput records level changes against a clock so tests and the bench UI
// can inspect the emitted waveform.
type SimOutput struct {
	mu    sync.Mutex
	clock Clock
	level bool
	trace []Transition
}

func NewSimOutput(clock Clock) *SimOutput {
	return &SimOutput{clock: clock}
}

func (o *SimOutput) Set(level bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if level == o.level {
		return
	}
	o.level = level
	o.trace = append(o.trace, Transition{Level: level, At: o.clock.Now()})
}

func (o *SimOutput) Level() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.level
}

// Trace returns a copy of all recorded level changes.
func (o *SimOutput) Trace() []Transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Transition, len(o.trace))
	copy(out, o.trace)
	return out
}
