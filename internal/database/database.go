package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pair-trade-tracker-go/internal/config"
	"pair-trade-tracker-go/internal/models"
)

// NewDatabase opens the ledger database and migrates the schema. Existing
// tables are never dropped: the ledger is durable user data, so migration is
// additive only.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Pair{}, &models.Trade{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return db, nil
}
