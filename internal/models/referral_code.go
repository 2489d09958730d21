package models

import "time"

// ReferralCode is a single-use token linking a referrer to the account that redeems it.
type ReferralCode struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code string `gorm:"type:text;not null;uniqueIndex"` // Redeemable token.

	ReferrerAccountID uint64   `gorm:"not null;uniqueIndex:idx_referral_pair,priority:1"` // Issuing account ID.
	ReferrerAccount   *Account `gorm:"foreignKey:ReferrerAccountID"`                      // Issuing account record.

	ReferredAccountID *uint64  `gorm:"uniqueIndex:idx_referral_pair,priority:2"` // Redeeming account ID, set once.
	ReferredAccount   *Account `gorm:"foreignKey:ReferredAccountID"`             // Redeeming account record.

	SignupBonusGranted bool       `gorm:"not null;default:false"` // Whether the redeemer received a bonus.
	ReferrerCredited   bool       `gorm:"not null;default:false"` // Whether the referrer payout happened.
	ReferrerCreditedAt *time.Time // Referrer payout time, if paid.

	UsedAt    *time.Time // Redemption time, if redeemed.
	CreatedAt time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// Redeemed reports whether the code has been used.
func (r *ReferralCode) Redeemed() bool {
	return r.ReferredAccountID != nil
}
