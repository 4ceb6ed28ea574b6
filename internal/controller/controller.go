// Package controller owns the launch-event state machine: it gates when
// transmission is legal, fires the encoder and transmitter on the one armed
// transition that has a side effect, and exposes a snapshot for renderers.
package controller

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rsayer/miles-sim/internal/hw"
	"github.com/rsayer/miles-sim/internal/input"
	"github.com/rsayer/miles-sim/internal/miles"
	"github.com/rsayer/miles-sim/internal/settings"
	"github.com/rsayer/miles-sim/internal/transmit"
)

var ErrMissingCollaborator = errors.New("controller missing collaborator")

type State string

const (
	StateSafe         State = "SAFE"
	StateSafeReady    State = "SAFE_READY"
	StateArmedFly     State = "ARMED_FLY"
	StateArmedSensing State = "ARMED_SENSING"
	StateArmedIRFlash State = "ARMED_IR_FLASH"
	StateExpended     State = "EXPENDED"
)

const (
	DefaultExpended    = 5 * time.Second
	DefaultShotToast   = 600 * time.Millisecond
	DefaultConfirmShow = 800 * time.Millisecond
)

// Sampler is what the controller polls once per tick.
type Sampler interface {
	Sample(now time.Time) input.Events
}

// Transmitter sends one encoded frame and reports the shot outcome. The call
// blocks for the frame plus the confirmation window.
type Transmitter interface {
	Transmit(frame miles.Frame) transmit.Result
}

// StatusSink receives a display-relevant snapshot after every tick. The
// controller never reads back from it.
type StatusSink interface {
	Render(snap Snapshot)
}

// Selection is the active protocol position plus side. Owned exclusively by
// the controller; mutated only by user actions or the startup settings load.
type Selection struct {
	Index int
	Side  miles.Side
}

// Snapshot is the one-way view pushed to renderers.
type Snapshot struct {
	State             State      `json:"state"`
	ProtocolID        int        `json:"protocol_id"`
	ProtocolName      string     `json:"protocol_name"`
	Side              miles.Side `json:"side"`
	ShotCount         int        `json:"shot_count"`
	ShotToast         bool       `json:"shot_toast"`
	Confirmed         bool       `json:"confirmed"`
	Limit             bool       `json:"limit"`
	Altitude          bool       `json:"altitude"`
	ExpendedRemaining int        `json:"expended_remaining_s"`
}

type Config struct {
	Expended    time.Duration // EXPENDED -> SAFE after this much dwell
	ShotToast   time.Duration // "IR FLASHED" banner lifetime
	ConfirmShow time.Duration // "CONFIRMED" banner lifetime
}

func (c Config) withDefaults() Config {
	if c.Expended <= 0 {
		c.Expended = DefaultExpended
	}
	if c.ShotToast <= 0 {
		c.ShotToast = DefaultShotToast
	}
	if c.ConfirmShow <= 0 {
		c.ConfirmShow = DefaultConfirmShow
	}
	return c
}

type Controller struct {
	reg     *miles.Registry
	sampler Sampler
	tx      Transmitter
	store   settings.Store
	clock   hw.Clock
	sink    StatusSink
	log     *zap.Logger
	cfg     Config

	state      State
	sel        Selection
	shotCount  int
	lastShot   *transmit.ShotEvent
	expendedAt time.Time
	inputs     input.Events
}

// New wires the controller and loads persisted settings. Configuration
// errors (an invalid registry) are fatal here so the armed states can never
// be reached with a malformed frame source. Persistence problems are not:
// they log and fall back to protocol index 0, BLUFOR.
func New(reg *miles.Registry, sampler Sampler, tx Transmitter, store settings.Store, clock hw.Clock, sink StatusSink, cfg Config, log *zap.Logger) (*Controller, error) {
	if reg == nil || sampler == nil || tx == nil || clock == nil {
		return nil, ErrMissingCollaborator
	}
	if store == nil {
		store = settings.NullStore{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	// The registry validates team bits at construction; re-encode here so a
	// hand-built Code slipping past still fails before arming is possible.
	for i := 0; i < reg.Len(); i++ {
		if _, err := miles.Encode(reg.At(i), miles.SideBlufor); err != nil {
			return nil, err
		}
	}

	c := &Controller{
		reg:     reg,
		sampler: sampler,
		tx:      tx,
		store:   store,
		clock:   clock,
		sink:    sink,
		log:     log,
		cfg:     cfg.withDefaults(),
		state:   StateSafe,
		sel:     Selection{Index: 0, Side: miles.SideBlufor},
	}
	c.loadSettings()
	return c, nil
}

func (c *Controller) loadSettings() {
	set, ok, err := c.store.Load()
	if err != nil {
		c.log.Warn("settings load failed, using defaults", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	idx, err := c.reg.IndexByID(set.ProtocolID)
	if err != nil {
		c.log.Warn("persisted protocol unknown, using defaults",
			zap.Int("protocol_id", set.ProtocolID))
		return
	}
	c.sel = Selection{Index: idx, Side: miles.SideFromOpfor(set.Opfor)}
}

func (c *Controller) State() State         { return c.state }
func (c *Controller) Selection() Selection { return c.sel }
func (c *Controller) ShotCount() int       { return c.shotCount }

// Tick runs one control-loop iteration: sample inputs, apply selection
// actions, advance the state machine by at most one transition, push a
// snapshot. The global long-press override is evaluated before any
// state-specific guard.
func (c *Controller) Tick(now time.Time) {
	c.inputs = c.sampler.Sample(now)

	if c.inputs.NextProtocol {
		c.sel.Index = (c.sel.Index + 1) % c.reg.Len()
		c.persist()
	}
	if c.inputs.ToggleSide {
		c.sel.Side = c.sel.Side.Toggle()
		c.persist()
	}

	c.step(now)
	c.expireShot(now)

	if c.sink != nil {
		c.sink.Render(c.Snapshot(c.clock.Now()))
	}
}

func (c *Controller) step(now time.Time) {
	if c.inputs.ArmHold {
		if c.state == StateSafe {
			c.state = StateSafeReady
		} else {
			// Forces SAFE from anywhere and clears the expended timer.
			c.state = StateSafe
			c.expendedAt = time.Time{}
		}
		return
	}

	switch c.state {
	case StateSafe:
		// Only exit is the long-press handled above.

	case StateSafeReady:
		if c.inputs.Limit {
			c.state = StateArmedFly
		}

	case StateArmedFly:
		if !c.inputs.Limit {
			c.state = StateArmedSensing
		}

	case StateArmedSensing:
		// Manual fire is a bench-test override: honored here and only here.
		if c.inputs.Altitude || c.inputs.ManualFire {
			c.state = StateArmedIRFlash
		}

	case StateArmedIRFlash:
		c.fire()
		c.state = StateExpended
		// Timestamp after the blocking transmit so the dwell is honest.
		c.expendedAt = c.clock.Now()

	case StateExpended:
		if now.Sub(c.expendedAt) >= c.cfg.Expended {
			c.state = StateSafe
			c.expendedAt = time.Time{}
		}
	}
}

// fire encodes the active selection and transmits it. This is the only state
// change with a side effect.
func (c *Controller) fire() {
	code := c.reg.At(c.sel.Index)
	frame, err := miles.Encode(code, c.sel.Side)
	if err != nil {
		// Unreachable past New's validation; refuse to emit garbage.
		c.log.Error("frame encode failed", zap.Int("protocol_id", code.ID), zap.Error(err))
		return
	}
	res := c.tx.Transmit(frame)
	c.shotCount = res.Shot.Seq
	shot := res.Shot
	c.lastShot = &shot
	c.log.Info("ir frame transmitted",
		zap.Int("shot", res.Shot.Seq),
		zap.String("frame", frame.String()),
		zap.Bool("confirmed", res.Confirmed))
}

// expireShot drops the transient shot record once both banners have lapsed.
func (c *Controller) expireShot(now time.Time) {
	if c.lastShot == nil {
		return
	}
	keep := c.cfg.ShotToast
	if c.cfg.ConfirmShow > keep {
		keep = c.cfg.ConfirmShow
	}
	if now.Sub(c.lastShot.At) >= keep {
		c.lastShot = nil
	}
}

func (c *Controller) persist() {
	set := settings.Settings{
		ProtocolID: c.reg.At(c.sel.Index).ID,
		Opfor:      c.sel.Side.Opfor(),
	}
	if err := c.store.Save(set); err != nil {
		c.log.Warn("settings save failed", zap.Error(err))
	}
}

// Snapshot reports display-relevant state as of now.
func (c *Controller) Snapshot(now time.Time) Snapshot {
	code := c.reg.At(c.sel.Index)
	snap := Snapshot{
		State:        c.state,
		ProtocolID:   code.ID,
		ProtocolName: code.Name,
		Side:         c.sel.Side,
		ShotCount:    c.shotCount,
		Limit:        c.inputs.Limit,
		Altitude:     c.inputs.Altitude,
	}
	if c.lastShot != nil {
		since := now.Sub(c.lastShot.At)
		snap.ShotToast = since < c.cfg.ShotToast
		snap.Confirmed = c.lastShot.Confirmed && since < c.cfg.ConfirmShow
	}
	if c.state == StateExpended {
		if rem := c.cfg.Expended - now.Sub(c.expendedAt); rem > 0 {
			// Whole seconds, the granularity the countdown is displayed at.
			snap.ExpendedRemaining = int(rem / time.Second)
		}
	}
	return snap
}
