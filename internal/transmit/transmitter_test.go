package transmit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsayer/miles-sim/internal/hw"
	"github.com/rsayer/miles-sim/internal/miles"
)

func newBench(t *testing.T, senseHigh bool) (*Transmitter, *hw.SimOutput, *hw.SimClock) {
	t.Helper()
	clock := hw.NewSimClock()
	out := hw.NewSimOutput(clock)
	sense := hw.NewSimPin(senseHigh)
	tx, err := New(out, sense, clock, Config{})
	require.NoError(t, err)
	return tx, out, clock
}

func TestNewRejectsPulseLongerThanBin(t *testing.T) {
	clock := hw.NewSimClock()
	_, err := New(hw.NewSimOutput(clock), hw.NewSimPin(false), clock, Config{
		Pulse: 600 * time.Microsecond,
		Bin:   500 * time.Microsecond,
	})
	require.ErrorIs(t, err, ErrPulseExceedsBin)
}

func TestTransmitWaveform(t *testing.T) {
	tx, out, _ := newBench(t, false)

	frame := miles.Frame{1, 1, 0, 0, 0, 1, 1, 1, 1, 0, 1}
	tx.Transmit(frame)

	ones := 0
	for _, b := range frame {
		if b == 1 {
			ones++
		}
	}

	trace := out.Trace()
	// One rising and one falling transition per '1' bit, nothing else.
	require.Len(t, trace, 2*ones)

	for i := 0; i < len(trace); i += 2 {
		require.True(t, trace[i].Level, "transition %d should be rising", i)
		require.False(t, trace[i+1].Level, "transition %d should be falling", i+1)
		assert.Equal(t, DefaultPulse, trace[i+1].At.Sub(trace[i].At), "pulse width")
	}

	// Pulses land on bin boundaries: bit i starts i*bin after the first bit.
	start := trace[0].At
	bit := 0
	pulse := 0
	for _, b := range frame {
		if b == 1 {
			wantStart := start.Add(time.Duration(bit) * DefaultBin)
			assert.Equal(t, wantStart, trace[2*pulse].At, "bit %d start", bit)
			pulse++
		}
		bit++
	}

	assert.False(t, out.Level(), "output must be forced low after the frame")
}

func TestTransmitBlocksForFramePlusWindow(t *testing.T) {
	tx, _, clock := newBench(t, false)

	start := clock.Now()
	res := tx.Transmit(miles.Frame{1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1})

	want := settleTime + 11*DefaultBin + DefaultConfirmWindow
	assert.Equal(t, want, clock.Now().Sub(start), "unconfirmed transmit should block for the full window")
	assert.False(t, res.Confirmed)
}

func TestConfirmationStopsEarly(t *testing.T) {
	tx, _, clock := newBench(t, true)

	start := clock.Now()
	res := tx.Transmit(miles.Frame{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})

	assert.True(t, res.Confirmed)
	assert.True(t, res.Shot.Confirmed)
	// Sense was already high, so the window exits on the first poll.
	assert.Equal(t, settleTime+11*DefaultBin, clock.Now().Sub(start))
}

func TestShotCounterUnconditional(t *testing.T) {
	clock := hw.NewSimClock()
	out := hw.NewSimOutput(clock)
	sense := hw.NewSimPin(false)
	tx, err := New(out, sense, clock, Config{})
	require.NoError(t, err)

	frame := miles.Frame{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	first := tx.Transmit(frame)
	assert.Equal(t, 1, first.Shot.Seq)
	assert.False(t, first.Confirmed)

	sense.Set(true)
	second := tx.Transmit(frame)
	assert.Equal(t, 2, second.Shot.Seq)
	assert.True(t, second.Confirmed)

	assert.Equal(t, 2, tx.Shots())
}
