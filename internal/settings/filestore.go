package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// fileMagic plays the role the EEPROM magic word played on the device: a
// validity marker so a half-written or foreign file reads as "no settings".
const fileMagic = "MILE"

type fileRecord struct {
	Magic      string `json:"magic"`
	ProtocolID int    `json:"protocol_id"`
	Opfor      bool   `json:"opfor"`
}

// FileStore keeps settings as a small JSON file, by default under the XDG
// config directory.
type FileStore struct {
	path string
}

func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "miles-sim", "settings.json")
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath()
	}
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Settings, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("read settings: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Settings{}, false, fmt.Errorf("parse settings: %w", err)
	}
	if rec.Magic != fileMagic {
		// Valid JSON but not ours; treat as absent.
		return Settings{}, false, nil
	}
	return Settings{ProtocolID: rec.ProtocolID, Opfor: rec.Opfor}, true, nil
}

func (s *FileStore) Save(set Settings) error {
	rec := fileRecord{Magic: fileMagic, ProtocolID: set.ProtocolID, Opfor: set.Opfor}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
