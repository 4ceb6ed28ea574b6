package types

import "github.com/rsayer/miles-sim/internal/device"

// ClientMessage is what the bench UI sends over the websocket.
//
//	SetInput: pin a control's raw level ("arm", "next", "side", "fire",
//	          "limit", "altitude", "sense")
//	Press:    assert a control momentarily; hold_ms defaults to a short tap
type ClientMessage struct {
	Type    string `json:"type"`
	Control string `json:"control,omitempty"`
	Level   bool   `json:"level,omitempty"`
	HoldMS  int    `json:"hold_ms,omitempty"`
}

// ServerMessage is what the device pushes back: versioned status snapshots,
// or an error for a malformed client message.
type ServerMessage struct {
	Type     string           `json:"type"` // "StateSnapshot" | "Error"
	Snapshot *device.Snapshot `json:"snapshot,omitempty"`
	Error    string           `json:"error,omitempty"`
}
