package models

import "time"

// Account is a credit-holding identity.
type Account struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email           string `gorm:"type:text;not null"`             // Email as provided at signup.
	EmailNormalized string `gorm:"type:text;not null;uniqueIndex"` // Lower-cased email used for uniqueness and lookup.
	PasswordHash    string `gorm:"type:text"`                      // Bcrypt hash; empty for externally-authenticated accounts.

	Balance int64 `gorm:"not null;default:0;check:chk_accounts_balance_non_negative,balance >= 0"` // Cached balance, always equal to the ledger sum.

	Disabled bool `gorm:"not null;default:false"` // Blocks sign-in when true.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// HasCredential reports whether the account can sign in with a password.
func (a *Account) HasCredential() bool {
	return a != nil && a.PasswordHash != ""
}
