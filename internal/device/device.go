// Package device runs one simulated weapon-effects device: a single
// goroutine owns the control loop, accepts input-injection messages from the
// bench UI, and broadcasts versioned status snapshots to joined clients.
package device

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rsayer/miles-sim/internal/controller"
	"github.com/rsayer/miles-sim/internal/hw"
	"github.com/rsayer/miles-sim/internal/input"
	"github.com/rsayer/miles-sim/internal/miles"
	"github.com/rsayer/miles-sim/internal/settings"
	"github.com/rsayer/miles-sim/internal/statusled"
	"github.com/rsayer/miles-sim/internal/transmit"
)

// Control names accepted by SetInput and Press.
const (
	ControlArm      = "arm"
	ControlNext     = "next"
	ControlSide     = "side"
	ControlFire     = "fire"
	ControlLimit    = "limit"
	ControlAltitude = "altitude"
	ControlSense    = "sense"
)

const (
	DefaultTick      = 5 * time.Millisecond
	DefaultPressHold = 250 * time.Millisecond
)

type Msg interface{ isDeviceMsg() }

type Join struct {
	ClientID string
	Outbox   chan Snapshot
}

type Leave struct{ ClientID string }

// SetInput pins a control's raw level until changed again.
type SetInput struct {
	Control string
	Level   bool
}

// Press asserts a control's raw level and releases it after Hold. The
// release happens inside the loop, so debounce and hold detection see a real
// level change.
type Press struct {
	Control string
	Hold    time.Duration
}

type GetView struct {
	Reply chan View
}

type Shutdown struct{}

func (Join) isDeviceMsg()     {}
func (Leave) isDeviceMsg()    {}
func (SetInput) isDeviceMsg() {}
func (Press) isDeviceMsg()    {}
func (GetView) isDeviceMsg()  {}
func (Shutdown) isDeviceMsg() {}

type Leds struct {
	Safe     bool `json:"safe"`
	Armed    bool `json:"armed"`
	Expended bool `json:"expended"`
}

// Snapshot is the display feed: the controller's view plus the indicator
// panel, stamped with a version that increments on every observable change.
type Snapshot struct {
	Version    int                 `json:"version"`
	Controller controller.Snapshot `json:"controller"`
	Leds       Leds                `json:"leds"`
}

type View struct {
	Version    int
	NumClients int
	Snapshot   Snapshot
}

type Config struct {
	Tick       time.Duration
	Clock      hw.Clock
	Sampler    input.Config
	Transmit   transmit.Config
	Controller controller.Config
}

type pins struct {
	arm, next, side, fire *hw.SimPin
	limit, altitude       *hw.SimPin
	sense                 *hw.SimPin
}

type Device struct {
	code   string
	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	clock    hw.Clock
	tickEvery time.Duration
	pins     pins
	emitter  *hw.SimOutput
	ledSafe  *hw.SimOutput
	ledArmed *hw.SimOutput
	ledExp   *hw.SimOutput
	panel    *statusled.Panel
	ctrl     *controller.Controller

	clients  map[string]chan Snapshot
	presses  map[string]time.Time // control -> release deadline
	version  int
	current  Snapshot
	havePrev bool
}

// New builds the simulated hardware, wires the control core onto it, and
// starts the loop. Configuration errors from the core are returned as-is;
// they are fatal by design.
func New(parent context.Context, code string, reg *miles.Registry, store settings.Store, cfg Config, log *zap.Logger) (*Device, error) {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Clock == nil {
		cfg.Clock = hw.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	d := &Device{
		code:     code,
		inbox:    make(chan Msg, 64),
		ctx:      ctx,
		cancel:   cancel,
		log:      log.With(zap.String("device", code)),
		clock:    cfg.Clock,
		tickEvery: cfg.Tick,
		pins: pins{
			arm:      hw.NewSimPin(false),
			next:     hw.NewSimPin(false),
			side:     hw.NewSimPin(false),
			fire:     hw.NewSimPin(false),
			limit:    hw.NewSimPin(false),
			altitude: hw.NewSimPin(false),
			sense:    hw.NewSimPin(false),
		},
		clients: make(map[string]chan Snapshot),
		presses: make(map[string]time.Time),
	}
	d.emitter = hw.NewSimOutput(d.clock)
	d.ledSafe = hw.NewSimOutput(d.clock)
	d.ledArmed = hw.NewSimOutput(d.clock)
	d.ledExp = hw.NewSimOutput(d.clock)
	d.panel = statusled.NewPanel(d.ledSafe, d.ledArmed, d.ledExp)

	smp := input.NewSampler(input.Pins{
		Arm:      d.pins.arm,
		Next:     d.pins.next,
		Side:     d.pins.side,
		Fire:     d.pins.fire,
		Limit:    d.pins.limit,
		Altitude: d.pins.altitude,
	}, cfg.Sampler)

	tx, err := transmit.New(d.emitter, d.pins.sense, d.clock, cfg.Transmit)
	if err != nil {
		cancel()
		return nil, err
	}

	d.ctrl, err = controller.New(reg, smp, tx, store, d.clock, sink{d}, cfg.Controller, d.log)
	if err != nil {
		cancel()
		return nil, err
	}

	// Seed the version-0 snapshot so joins before the first tick get a view.
	d.render(d.ctrl.Snapshot(d.clock.Now()))

	go d.loop()
	return d, nil
}

func (d *Device) Code() string      { return d.code }
func (d *Device) Inbox() chan<- Msg { return d.inbox }

// sink adapts the device to the controller's StatusSink without exposing
// Render on the public surface.
type sink struct{ d *Device }

func (s sink) Render(cs controller.Snapshot) { s.d.render(cs) }

func (d *Device) loop() {
	ticker := time.NewTicker(d.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.shutdown()
			return

		case m := <-d.inbox:
			switch msg := m.(type) {
			case Join:
				d.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- d.current

			case Leave:
				delete(d.clients, msg.ClientID)

			case SetInput:
				if pin, ok := d.pin(msg.Control); ok {
					pin.Set(msg.Level)
					delete(d.presses, msg.Control)
				} else {
					d.log.Debug("unknown control", zap.String("control", msg.Control))
				}

			case Press:
				if pin, ok := d.pin(msg.Control); ok {
					hold := msg.Hold
					if hold <= 0 {
						hold = DefaultPressHold
					}
					pin.Set(true)
					d.presses[msg.Control] = d.clock.Now().Add(hold)
				} else {
					d.log.Debug("unknown control", zap.String("control", msg.Control))
				}

			case GetView:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Version:    d.version,
					NumClients: len(d.clients),
					Snapshot:   d.current,
				}

			case Shutdown:
				d.shutdown()
				return
			}

		case <-ticker.C:
			d.releaseDue()
			d.ctrl.Tick(d.clock.Now())
		}
	}
}

// releaseDue drops any pressed control whose hold has elapsed.
func (d *Device) releaseDue() {
	now := d.clock.Now()
	for control, deadline := range d.presses {
		if !now.Before(deadline) {
			if pin, ok := d.pin(control); ok {
				pin.Set(false)
			}
			delete(d.presses, control)
		}
	}
}

func (d *Device) pin(control string) (*hw.SimPin, bool) {
	switch control {
	case ControlArm:
		return d.pins.arm, true
	case ControlNext:
		return d.pins.next, true
	case ControlSide:
		return d.pins.side, true
	case ControlFire:
		return d.pins.fire, true
	case ControlLimit:
		return d.pins.limit, true
	case ControlAltitude:
		return d.pins.altitude, true
	case ControlSense:
		return d.pins.sense, true
	}
	return nil, false
}

// render is the StatusSink: apply the LED mapping, then broadcast if
// anything a renderer could see has changed.
func (d *Device) render(cs controller.Snapshot) {
	d.panel.Apply(cs.State)
	body := Snapshot{
		Controller: cs,
		Leds: Leds{
			Safe:     d.ledSafe.Level(),
			Armed:    d.ledArmed.Level(),
			Expended: d.ledExp.Level(),
		},
	}
	if d.havePrev && body.Controller == d.current.Controller && body.Leds == d.current.Leds {
		return
	}
	if d.havePrev {
		d.version++
	}
	d.havePrev = true
	body.Version = d.version
	d.current = body
	d.broadcast(body)
}

func (d *Device) broadcast(snap Snapshot) {
	for id, ch := range d.clients {
		select {
		case ch <- snap:
			// ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(d.clients, id)
		}
	}
}

func (d *Device) shutdown() {
	for id, ch := range d.clients {
		close(ch)
		delete(d.clients, id)
	}
	d.cancel()
}
