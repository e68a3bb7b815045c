package db

import (
	"fmt"

	"github.com/zulandar/aocrank/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every persisted record type for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.CachedMessage{},
		&models.CachedSpawn{},
		&models.MonitoredProcess{},
		&models.MessageTrace{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// OpenTest opens a migrated in-memory SQLite database. Intended for tests in
// packages that persist records.
func OpenTest() (*gorm.DB, error) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
