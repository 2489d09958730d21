package models

import "time"

// Ledger entry kinds.
const (
	LedgerKindPurchase        = "purchase"
	LedgerKindSpend           = "spend"
	LedgerKindReferralBonus   = "referral-bonus"
	LedgerKindReferralPayout  = "referral-payout"
	LedgerKindAdminAdjustment = "admin-adjustment"
)

// LedgerEntry is one immutable signed balance change.
type LedgerEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement;index:idx_ledger_account_id,priority:2"` // Primary key; also orders an account's history.

	AccountID uint64   `gorm:"not null;index:idx_ledger_account_id,priority:1"` // Owning account ID.
	Account   *Account `gorm:"foreignKey:AccountID"`                            // Owning account record.

	Delta  int64  `gorm:"not null"`                 // Signed balance change.
	Kind   string `gorm:"type:text;not null;index"` // Reason tag, one of the LedgerKind constants.
	Reason string `gorm:"type:text;not null"`       // Full reason, e.g. "purchase:10-credits".

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Write timestamp.
}
