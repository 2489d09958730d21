package settings

// DB setting keys. Values fall back to the file configuration when unset.
const (
	// ReferralSignupBonusKey overrides the credits granted to a redeeming account.
	ReferralSignupBonusKey = "REFERRAL_SIGNUP_BONUS"
	// ReferralPayoutCreditsKey overrides the credits paid to a referrer.
	ReferralPayoutCreditsKey = "REFERRAL_PAYOUT_CREDITS"
	// ReferralPayoutTriggerKey selects when referrers are paid: "first_purchase" or "manual".
	ReferralPayoutTriggerKey = "REFERRAL_PAYOUT_TRIGGER"
	// WebhookEventsRetentionDaysKey controls how long webhook audit rows are kept.
	WebhookEventsRetentionDaysKey = "WEBHOOK_EVENTS_RETENTION_DAYS"
	// DefaultWebhookEventsRetentionDays is the fallback retention window (days).
	DefaultWebhookEventsRetentionDays = 90
)

// Referral payout triggers.
const (
	PayoutTriggerFirstPurchase = "first_purchase"
	PayoutTriggerManual        = "manual"
)

// knownKeys lists the keys accepted by Upsert.
var knownKeys = map[string]struct{}{
	ReferralSignupBonusKey:        {},
	ReferralPayoutCreditsKey:      {},
	ReferralPayoutTriggerKey:      {},
	WebhookEventsRetentionDaysKey: {},
}

// IsKnownKey reports whether key is a recognised setting.
func IsKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}
