package settings

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// deviceSettings is the persisted row for one simulated device. Bench rigs
// hosting many devices share a single Postgres database keyed by device code.
type deviceSettings struct {
	DeviceCode string `gorm:"primaryKey;size:16"`
	ProtocolID int
	Opfor      bool
	UpdatedAt  time.Time
}

func (deviceSettings) TableName() string { return "device_settings" }

// OpenDB connects to Postgres and migrates the settings table.
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	if err := db.AutoMigrate(&deviceSettings{}); err != nil {
		return nil, fmt.Errorf("migrate settings db: %w", err)
	}
	return db, nil
}

// GormStore is the Store for one device code within a shared database.
type GormStore struct {
	db   *gorm.DB
	code string
}

func NewGormStore(db *gorm.DB, deviceCode string) *GormStore {
	return &GormStore{db: db, code: deviceCode}
}

func (s *GormStore) Load() (Settings, bool, error) {
	var row deviceSettings
	err := s.db.First(&row, "device_code = ?", s.code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("load settings: %w", err)
	}
	return Settings{ProtocolID: row.ProtocolID, Opfor: row.Opfor}, true, nil
}

func (s *GormStore) Save(set Settings) error {
	row := deviceSettings{
		DeviceCode: s.code,
		ProtocolID: set.ProtocolID,
		Opfor:      set.Opfor,
		UpdatedAt:  time.Now(),
	}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
