package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectTest opens an in-memory SQLite database with the full schema migrated.
// Intended for package tests that need a real gorm.DB without a running Postgres.
func ConnectTest() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}

	// In-memory SQLite is per-connection; a second connection would see an empty schema.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}
	return db, nil
}
