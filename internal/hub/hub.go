// Package hub owns the registry of running simulated devices, keyed by the
// short code handed out at creation.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/rsayer/miles-sim/internal/device"
)

type HubMsg interface{ isHubMsg() }

type CreateDevice struct {
	Code  string
	Reply chan *device.Device
}

type GetDevice struct {
	Code  string
	Reply chan *device.Device
}

type EnsureDevice struct {
	Code  string
	Reply chan *device.Device
}

type RemoveDevice struct {
	Code string
}

type ShutdownHub struct{}

func (CreateDevice) isHubMsg() {}
func (GetDevice) isHubMsg()    {}
func (EnsureDevice) isHubMsg() {}
func (RemoveDevice) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

// Factory builds a device for a code. The hub stays ignorant of registries,
// settings stores and tick configs; main wires those into the factory.
type Factory func(ctx context.Context, code string) (*device.Device, error)

type Hub struct {
	inbox   chan HubMsg
	devices map[string]*device.Device
	factory Factory
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, factory Factory, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		devices: make(map[string]*device.Device),
		factory: factory,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) create(code string) *device.Device {
	d, err := h.factory(h.ctx, code)
	if err != nil {
		h.log.Error("device create failed", zap.String("code", code), zap.Error(err))
		return nil
	}
	h.devices[code] = d
	h.log.Info("device created", zap.String("code", code))
	return d
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateDevice:
				if d := h.devices[msg.Code]; d != nil {
					msg.Reply <- d
					break
				}
				msg.Reply <- h.create(msg.Code)

			case GetDevice:
				msg.Reply <- h.devices[msg.Code] // May be nil

			case EnsureDevice:
				if d := h.devices[msg.Code]; d != nil {
					msg.Reply <- d
					break
				}
				msg.Reply <- h.create(msg.Code)

			case RemoveDevice:
				if d := h.devices[msg.Code]; d != nil {
					d.Inbox() <- device.Shutdown{}
				}
				delete(h.devices, msg.Code)

			case ShutdownHub:
				for _, d := range h.devices {
					d.Inbox() <- device.Shutdown{}
				}
				clear(h.devices)
				h.cancel()
			}
		}
	}
}
