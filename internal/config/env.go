package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverrides holds raw environment values layered over the file configuration.
// Pointer fields distinguish "unset" from zero values.
type envOverrides struct {
	ServerAddr       *string        `env:"CREDITCORE_SERVER_ADDR"`
	ServerMode       *string        `env:"CREDITCORE_SERVER_MODE"`
	DatabaseDSN      *string        `env:"CREDITCORE_DATABASE_DSN"`
	JWTSecret        *string        `env:"CREDITCORE_JWT_SECRET"`
	WebhookSecret    *string        `env:"CREDITCORE_WEBHOOK_SECRET"`
	WebhookTolerance *time.Duration `env:"CREDITCORE_WEBHOOK_TOLERANCE"`
	SignupBonus      *int64         `env:"CREDITCORE_REFERRAL_SIGNUP_BONUS"`
	PayoutCredits    *int64         `env:"CREDITCORE_REFERRAL_PAYOUT_CREDITS"`
	PayoutTrigger    *string        `env:"CREDITCORE_REFERRAL_PAYOUT_TRIGGER"`
	CacheDriver      *string        `env:"CREDITCORE_CACHE_DRIVER"`
	RedisAddr        *string        `env:"CREDITCORE_REDIS_ADDR"`
	RedisPassword    *string        `env:"CREDITCORE_REDIS_PASSWORD"`
	LogLevel         *string        `env:"CREDITCORE_LOG_LEVEL"`
	LogFormat        *string        `env:"CREDITCORE_LOG_FORMAT"`
	LogFile          *string        `env:"CREDITCORE_LOG_FILE"`
	ReconcileCron    *string        `env:"CREDITCORE_RECONCILE_SCHEDULE"`
	SettingsRefresh  *string        `env:"CREDITCORE_SETTINGS_REFRESH_SCHEDULE"`
}

// applyEnv overlays set environment variables onto cfg.
func applyEnv(cfg *Config) error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	setString(&cfg.Server.Addr, raw.ServerAddr)
	setString(&cfg.Server.Mode, raw.ServerMode)
	setString(&cfg.Database.DSN, raw.DatabaseDSN)
	setString(&cfg.JWT.Secret, raw.JWTSecret)
	setString(&cfg.Webhook.Secret, raw.WebhookSecret)
	if raw.WebhookTolerance != nil {
		cfg.Webhook.Tolerance = *raw.WebhookTolerance
	}
	if raw.SignupBonus != nil {
		cfg.Referral.SignupBonus = *raw.SignupBonus
	}
	if raw.PayoutCredits != nil {
		cfg.Referral.PayoutCredits = *raw.PayoutCredits
	}
	setString(&cfg.Referral.PayoutTrigger, raw.PayoutTrigger)
	setString(&cfg.Cache.Driver, raw.CacheDriver)
	setString(&cfg.Cache.RedisAddr, raw.RedisAddr)
	setString(&cfg.Cache.RedisPassword, raw.RedisPassword)
	setString(&cfg.Logging.Level, raw.LogLevel)
	setString(&cfg.Logging.Format, raw.LogFormat)
	setString(&cfg.Logging.File, raw.LogFile)
	setString(&cfg.Reconcile.Schedule, raw.ReconcileCron)
	setString(&cfg.Settings.RefreshSchedule, raw.SettingsRefresh)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
