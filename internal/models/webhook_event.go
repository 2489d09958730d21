package models

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook event outcomes.
const (
	WebhookOutcomeApplied        = "applied"
	WebhookOutcomeDuplicate      = "duplicate"
	WebhookOutcomeIgnored        = "ignored"
	WebhookOutcomeUnknownPayment = "unknown_payment"
	WebhookOutcomeConflict       = "conflict"
	WebhookOutcomeAmountMismatch = "amount_mismatch"
)

// WebhookEvent is the audit record of a verified provider delivery.
type WebhookEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EventID           string `gorm:"type:text;not null;uniqueIndex"` // Provider event ID.
	Type              string `gorm:"type:text;not null;index"`       // Provider event type.
	ExternalPaymentID string `gorm:"type:text;index"`                // Payment ID carried by the event.
	Outcome           string `gorm:"type:text;not null"`             // Processing outcome of the first delivery.

	Payload datatypes.JSON `gorm:"type:jsonb"` // Raw verified payload.

	ReceivedAt time.Time `gorm:"not null;index"` // First delivery time.
}
