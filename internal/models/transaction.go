package models

import "time"

// Transaction statuses.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction records one purchase attempt of a credit pack.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID uint64   `gorm:"not null;index"`       // Purchasing account ID.
	Account   *Account `gorm:"foreignKey:AccountID"` // Purchasing account record.

	PackID               string `gorm:"type:text;not null"` // Purchased pack identifier.
	CreditsRequested     int64  `gorm:"not null"`           // Credits granted on completion.
	AmountPaidMinorUnits int64  `gorm:"not null"`           // Price in minor currency units.
	Currency             string `gorm:"type:text;not null"` // ISO 4217 code, lower case.

	Status            string  `gorm:"type:text;not null;index;default:pending"` // pending, completed or failed.
	ExternalPaymentID *string `gorm:"type:text;uniqueIndex"`                    // Provider payment ID once bound.
	FailureReason     string  `gorm:"type:text"`                                // Reason recorded by Fail.

	CompletedAt *time.Time // Completion time, if completed.
	FailedAt    *time.Time // Failure time, if failed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsFinal reports whether the transaction reached a terminal status.
func (t *Transaction) IsFinal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}
