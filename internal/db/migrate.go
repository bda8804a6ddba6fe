package db

import (
	"fmt"

	"github.com/econexus/parley/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model the marketplace persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.BuyerRequest{},
		&models.SellerQuote{},
		&models.NegotiationThread{},
		&models.ChatMessage{},
		&models.Transaction{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
