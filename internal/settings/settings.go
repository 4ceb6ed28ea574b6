// Package settings persists the active selection (protocol id + side) across
// restarts. The store may be absent or corrupt; callers fall back to defaults
// and keep running.
package settings

// Settings is the opaque two-field record the controller persists.
type Settings struct {
	ProtocolID int  `json:"protocol_id"`
	Opfor      bool `json:"opfor"`
}

// Store loads and saves settings. Load's second return reports presence: a
// missing or invalid record is (zero, false, nil), not an error.
type Store interface {
	Load() (Settings, bool, error)
	Save(Settings) error
}

// NullStore is the "persistence unavailable" store: loads nothing, saves
// silently succeed without writing anywhere.
type NullStore struct{}

func (NullStore) Load() (Settings, bool, error) { return Settings{}, false, nil }
func (NullStore) Save(Settings) error           { return nil }
