package db

import (
	"fmt"

	"github.com/taxiline/taxiline/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model that belongs to the schema.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Payment{},
		&models.TaxiOrder{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
