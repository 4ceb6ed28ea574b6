package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rsayer/miles-sim/internal/controller"
	"github.com/rsayer/miles-sim/internal/device"
	"github.com/rsayer/miles-sim/internal/input"
	"github.com/rsayer/miles-sim/internal/miles"
	"github.com/rsayer/miles-sim/internal/settings"
)

func testFactory(t *testing.T) Factory {
	t.Helper()
	reg, err := miles.DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cfg := device.Config{
		Tick:       time.Millisecond,
		Sampler:    input.Config{Debounce: 5 * time.Millisecond, Hold: 20 * time.Millisecond},
		Controller: controller.Config{Expended: 80 * time.Millisecond},
	}
	return func(ctx context.Context, code string) (*device.Device, error) {
		return device.New(ctx, code, reg, settings.NullStore{}, cfg, nil)
	}
}

func recvDevice(t *testing.T, ch <-chan *device.Device) *device.Device {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for device reply")
		return nil // unreachable
	}
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, testFactory(t), nil)
	reply := make(chan *device.Device, 1)

	h.Inbox() <- CreateDevice{Code: "ZED123", Reply: reply}
	d1 := recvDevice(t, reply)

	h.Inbox() <- GetDevice{Code: "ZED123", Reply: reply}
	d2 := recvDevice(t, reply)

	if d1 == nil || d2 == nil || d1 != d2 {
		t.Fatalf("expected same device pointer")
	}
}

func TestHub_GetUnknownIsNil(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, testFactory(t), nil)
	reply := make(chan *device.Device, 1)

	h.Inbox() <- GetDevice{Code: "NOPE01", Reply: reply}
	if d := recvDevice(t, reply); d != nil {
		t.Fatalf("expected nil for unknown code, got %v", d.Code())
	}
}

func TestHub_EnsureCreatesOnce(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, testFactory(t), nil)
	reply := make(chan *device.Device, 1)

	h.Inbox() <- EnsureDevice{Code: "AAA111", Reply: reply}
	d1 := recvDevice(t, reply)

	h.Inbox() <- EnsureDevice{Code: "AAA111", Reply: reply}
	d2 := recvDevice(t, reply)

	if d1 == nil || d1 != d2 {
		t.Fatalf("ensure should return the existing device")
	}
}

func TestHub_FactoryErrorYieldsNil(t *testing.T) {
	ctx := context.Background()
	failing := func(ctx context.Context, code string) (*device.Device, error) {
		return nil, errors.New("boom")
	}
	h := NewHub(ctx, failing, nil)
	reply := make(chan *device.Device, 1)

	h.Inbox() <- CreateDevice{Code: "BAD001", Reply: reply}
	if d := recvDevice(t, reply); d != nil {
		t.Fatalf("expected nil device on factory error")
	}

	// The failed code must not be cached.
	h.Inbox() <- GetDevice{Code: "BAD001", Reply: reply}
	if d := recvDevice(t, reply); d != nil {
		t.Fatalf("failed create should not be registered")
	}
}

func TestHub_RemoveShutsDeviceDown(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, testFactory(t), nil)
	reply := make(chan *device.Device, 1)

	h.Inbox() <- CreateDevice{Code: "RIP001", Reply: reply}
	d := recvDevice(t, reply)

	out := make(chan device.Snapshot, 64)
	d.Inbox() <- device.Join{ClientID: "c1", Outbox: out}
	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatalf("never received join snapshot")
	}

	h.Inbox() <- RemoveDevice{Code: "RIP001"}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return // device shut down and closed its clients
			}
		case <-deadline:
			t.Fatalf("device outbox never closed after removal")
		}
	}
}
