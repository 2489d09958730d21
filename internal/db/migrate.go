package db

import (
	"fmt"

	"github.com/prepwise/creditcore/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table owned by the credit core.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: migrate: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.Account{},
		&models.LedgerEntry{},
		&models.Transaction{},
		&models.ReferralCode{},
		&models.WebhookEvent{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
