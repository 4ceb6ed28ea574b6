package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/rsayer/miles-sim/internal/device"
	"github.com/rsayer/miles-sim/internal/hub"
	"github.com/rsayer/miles-sim/internal/types"
)

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		reply := make(chan *device.Device, 1)
		h.Inbox() <- hub.GetDevice{Code: code, Reply: reply}
		d := <-reply
		if d == nil {
			http.Error(w, "device not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan device.Snapshot, 16)
		clientID := randID(6)
		log := log.With(zap.String("device", code), zap.String("client", clientID))

		d.Inbox() <- device.Join{ClientID: clientID, Outbox: out}
		defer func() { d.Inbox() <- device.Leave{ClientID: clientID} }()

		// Writer goroutine: stream snapshots until the device drops us.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				msg := types.ServerMessage{Type: "StateSnapshot", Snapshot: &snap}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop: translate client messages into device messages.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"Error","error":"bad json"}`))
				continue
			}

			msg, ok := toDeviceMsg(cm)
			if !ok {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"Error","error":"unknown type or control"}`))
				continue
			}

			log.Debug("input injected",
				zap.String("type", cm.Type), zap.String("control", cm.Control))
			d.Inbox() <- msg
		}
	}
}

func validControl(control string) bool {
	switch control {
	case device.ControlArm, device.ControlNext, device.ControlSide,
		device.ControlFire, device.ControlLimit, device.ControlAltitude,
		device.ControlSense:
		return true
	}
	return false
}

func toDeviceMsg(cm types.ClientMessage) (device.Msg, bool) {
	if !validControl(cm.Control) {
		return nil, false
	}
	switch cm.Type {
	case "SetInput":
		return device.SetInput{Control: cm.Control, Level: cm.Level}, true
	case "Press":
		return device.Press{Control: cm.Control, Hold: time.Duration(cm.HoldMS) * time.Millisecond}, true
	default:
		return nil, false
	}
}

const idCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

func randID(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idCharset[rand.Intn(len(idCharset))]
	}
	return string(b)
}
