// Package hw holds the narrow hardware capabilities the control core depends
// on. Real deployments back these with GPIO bindings; the simulator and the
// tests back them with the in-memory implementations in sim.go.
package hw

import "time"

type DigitalInput interface {
	Read() bool
}

type DigitalOutput interface {
	Set(level bool)
}

// Clock is a monotonic time source. Sleep is part of the contract so the
// transmitter's blocking bit timing can run against a simulated clock.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the real wall clock. time.Now carries a monotonic reading,
// so Sub/Since on its values is safe against wall-clock jumps.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
