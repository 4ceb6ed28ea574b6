// Package statusled mirrors controller state onto the three indicator
// outputs (green SAFE, orange ARMED, red EXPENDED).
package statusled

import (
	"github.com/rsayer/miles-sim/internal/controller"
	"github.com/rsayer/miles-sim/internal/hw"
)

type Panel struct {
	safe     hw.DigitalOutput
	armed    hw.DigitalOutput
	expended hw.DigitalOutput
}

func NewPanel(safe, armed, expended hw.DigitalOutput) *Panel {
	return &Panel{safe: safe, armed: armed, expended: expended}
}

func (p *Panel) Apply(state controller.State) {
	p.safe.Set(state == controller.StateSafe)
	p.armed.Set(state == controller.StateSafeReady ||
		state == controller.StateArmedFly ||
		state == controller.StateArmedSensing ||
		state == controller.StateArmedIRFlash)
	p.expended.Set(state == controller.StateExpended)
}
