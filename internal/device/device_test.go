package device

import (
	"context"
	"testing"
	"time"

	"github.com/rsayer/miles-sim/internal/controller"
	"github.com/rsayer/miles-sim/internal/input"
	"github.com/rsayer/miles-sim/internal/miles"
	"github.com/rsayer/miles-sim/internal/settings"
)

// fastConfig shrinks the real-time intervals so device tests finish quickly.
func fastConfig() Config {
	return Config{
		Tick: time.Millisecond,
		Sampler: input.Config{
			Debounce: 5 * time.Millisecond,
			Hold:     20 * time.Millisecond,
		},
		Controller: controller.Config{
			Expended: 80 * time.Millisecond,
		},
	}
}

func newDevice(t *testing.T, ctx context.Context) *Device {
	t.Helper()
	reg, err := miles.DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	d, err := New(ctx, "TEST01", reg, settings.NullStore{}, fastConfig(), nil)
	if err != nil {
		t.Fatalf("device: %v", err)
	}
	return d
}

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

// helper: drain snapshots until one shows the wanted state
func waitForState(t *testing.T, ch <-chan Snapshot, want controller.State, within time.Duration) Snapshot {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatalf("client outbox closed while waiting for %s", want)
			}
			if snap.Controller.State == want {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
			return Snapshot{} // unreachable
		}
	}
}

func TestDevice_JoinReceivesInitialSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDevice(t, ctx)
	out := make(chan Snapshot, 64)
	d.Inbox() <- Join{ClientID: "c1", Outbox: out}

	first := recvSnapshot(t, out, time.Second)
	if first.Version != 0 {
		t.Fatalf("join snapshot version: got %d, want 0", first.Version)
	}
	if first.Controller.State != controller.StateSafe {
		t.Fatalf("initial state: got %s, want SAFE", first.Controller.State)
	}
	if !first.Leds.Safe || first.Leds.Armed || first.Leds.Expended {
		t.Fatalf("initial leds wrong: %+v", first.Leds)
	}
}

func TestDevice_LongPressArms(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDevice(t, ctx)
	out := make(chan Snapshot, 64)
	d.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, time.Second)

	d.Inbox() <- Press{Control: ControlArm, Hold: 40 * time.Millisecond}
	snap := waitForState(t, out, controller.StateSafeReady, 2*time.Second)
	if !snap.Leds.Armed {
		t.Fatalf("armed led should be lit in SAFE_READY")
	}
}

func TestDevice_FullFlightViaInjectedInputs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDevice(t, ctx)
	out := make(chan Snapshot, 64)
	d.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, time.Second)

	d.Inbox() <- Press{Control: ControlArm, Hold: 40 * time.Millisecond}
	waitForState(t, out, controller.StateSafeReady, 2*time.Second)

	d.Inbox() <- SetInput{Control: ControlLimit, Level: true}
	waitForState(t, out, controller.StateArmedFly, 2*time.Second)

	d.Inbox() <- SetInput{Control: ControlLimit, Level: false}
	waitForState(t, out, controller.StateArmedSensing, 2*time.Second)

	d.Inbox() <- SetInput{Control: ControlAltitude, Level: true}
	snap := waitForState(t, out, controller.StateExpended, 2*time.Second)
	if snap.Controller.ShotCount != 1 {
		t.Fatalf("shot count after flight: got %d, want 1", snap.Controller.ShotCount)
	}
	if !snap.Leds.Expended {
		t.Fatalf("expended led should be lit")
	}

	// Expended dwell (80ms in fast config) returns the device to SAFE.
	waitForState(t, out, controller.StateSafe, 2*time.Second)
}

func TestDevice_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDevice(t, ctx)

	// Buffer of 1 fills with the join snapshot; the next broadcast drops us.
	out := make(chan Snapshot, 1)
	d.Inbox() <- Join{ClientID: "c1", Outbox: out}
	d.Inbox() <- Press{Control: ControlNext, Hold: 20 * time.Millisecond}

	// Give the selection change time to broadcast.
	time.Sleep(100 * time.Millisecond)

	reply := make(chan View, 1)
	d.Inbox() <- GetView{Reply: reply}
	select {
	case view := <-reply:
		if view.NumClients != 0 {
			t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
	}
}

func TestDevice_ShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDevice(t, ctx)
	out := make(chan Snapshot, 64)
	d.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, time.Second)

	d.Inbox() <- Shutdown{}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return // closed, as expected
			}
		case <-deadline:
			t.Fatalf("outbox never closed after shutdown")
		}
	}
}
