package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither a flag nor CREDITCORE_CONFIG names a file.
const DefaultConfigPath = "config.yaml"

// ConfigPathEnv names the environment variable consulted by ResolveConfigPath.
const ConfigPathEnv = "CREDITCORE_CONFIG"

// Cache drivers.
const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Referral payout triggers accepted in the file configuration.
const (
	PayoutTriggerFirstPurchase = "first_purchase"
	PayoutTriggerManual        = "manual"
)

// AppConfig holds process-level options supplied on the command line.
type AppConfig struct {
	ConfigPath string
}

// Config is the complete file configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Referral  ReferralConfig  `yaml:"referral"`
	Packs     []PackConfig    `yaml:"packs"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Retention RetentionConfig `yaml:"retention"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
	Settings  SettingsConfig  `yaml:"settings"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`            // Listen address.
	Mode           string        `yaml:"mode"`            // Gin mode: debug, release or test.
	TrustedProxies []string      `yaml:"trusted-proxies"` // Proxies allowed to set client IP headers.
	ShutdownGrace  time.Duration `yaml:"shutdown-grace"`  // Time allowed for in-flight requests on shutdown.
	ReadTimeout    time.Duration `yaml:"read-timeout"`    // Request read timeout.
	WriteTimeout   time.Duration `yaml:"write-timeout"`   // Response write timeout.
}

// DatabaseConfig configures the storage connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // PostgreSQL URL/keyword DSN or SQLite path.
}

// JWTConfig configures signed session tokens.
type JWTConfig struct {
	Secret      string        `yaml:"secret"`       // HMAC signing secret.
	Expiry      time.Duration `yaml:"expiry"`       // Account token lifetime.
	AdminExpiry time.Duration `yaml:"admin-expiry"` // Admin token lifetime.
}

// WebhookConfig configures payment notification verification.
type WebhookConfig struct {
	Secret    string        `yaml:"secret"`    // Shared signing secret.
	Tolerance time.Duration `yaml:"tolerance"` // Maximum signature age; 0 disables the check.
}

// ReferralConfig holds default referral amounts; DB settings override them.
type ReferralConfig struct {
	SignupBonus   int64  `yaml:"signup-bonus"`   // Credits granted to the redeeming account.
	PayoutCredits int64  `yaml:"payout-credits"` // Credits paid to the referrer.
	PayoutTrigger string `yaml:"payout-trigger"` // first_purchase or manual.
}

// PackConfig describes one purchasable credit pack.
type PackConfig struct {
	ID         string `yaml:"id"`          // Stable pack identifier, e.g. 10-credits.
	Credits    int64  `yaml:"credits"`     // Credits granted on completion.
	PriceMinor int64  `yaml:"price-minor"` // Price in minor currency units.
	Currency   string `yaml:"currency"`    // ISO currency code.
}

// CacheConfig configures the profile cache.
type CacheConfig struct {
	Driver        string        `yaml:"driver"`         // memory or redis.
	TTL           time.Duration `yaml:"ttl"`            // Entry lifetime.
	MaxEntries    int           `yaml:"max-entries"`    // Memory driver capacity.
	RedisAddr     string        `yaml:"redis-addr"`     // Redis host:port.
	RedisPassword string        `yaml:"redis-password"` // Redis password.
	RedisDB       int           `yaml:"redis-db"`       // Redis database index.
	KeyPrefix     string        `yaml:"key-prefix"`     // Redis key namespace.
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`        // logrus level name.
	Format     string `yaml:"format"`       // text or json.
	File       string `yaml:"file"`         // Optional log file; stdout when empty.
	MaxSizeMB  int    `yaml:"max-size-mb"`  // Rotation size.
	MaxBackups int    `yaml:"max-backups"`  // Rotated files kept.
	MaxAgeDays int    `yaml:"max-age-days"` // Rotated file age limit.
}

// ReconcileConfig configures the balance verification job.
type ReconcileConfig struct {
	Enabled  bool   `yaml:"enabled"`  // Run the job inside serve.
	Schedule string `yaml:"schedule"` // Cron expression.
}

// RetentionConfig configures the webhook audit cleaner.
type RetentionConfig struct {
	Interval  time.Duration `yaml:"interval"`   // Time between cleanup runs.
	BatchSize int           `yaml:"batch-size"` // Rows deleted per statement.
}

// RateLimitConfig configures per-client limits on public auth endpoints.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per-second"` // Sustained requests per second.
	Burst     int     `yaml:"burst"`      // Burst size.
}

// SettingsConfig configures how often DB-backed settings are reloaded.
type SettingsConfig struct {
	RefreshSchedule string `yaml:"refresh-schedule"` // Cron expression; empty disables periodic reloads.
}

// Default returns a configuration populated with defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:          ":8080",
			Mode:          "release",
			ShutdownGrace: 10 * time.Second,
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  30 * time.Second,
		},
		JWT: JWTConfig{
			Expiry:      24 * time.Hour,
			AdminExpiry: time.Hour,
		},
		Webhook: WebhookConfig{
			Tolerance: 5 * time.Minute,
		},
		Referral: ReferralConfig{
			SignupBonus:   3,
			PayoutCredits: 5,
			PayoutTrigger: PayoutTriggerFirstPurchase,
		},
		Cache: CacheConfig{
			Driver:     CacheDriverMemory,
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
			KeyPrefix:  "creditcore:",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Reconcile: ReconcileConfig{
			Enabled:  true,
			Schedule: "@every 1h",
		},
		Retention: RetentionConfig{
			Interval:  time.Hour,
			BatchSize: 5000,
		},
		RateLimit: RateLimitConfig{
			PerSecond: 1,
			Burst:     10,
		},
		Settings: SettingsConfig{
			RefreshSchedule: "@every 30s",
		},
	}
}

// ResolveConfigPath returns the config path from the flag, CREDITCORE_CONFIG, or the default.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if fromEnv := strings.TrimSpace(os.Getenv(ConfigPathEnv)); fromEnv != "" {
		return fromEnv
	}
	return DefaultConfigPath
}

// ConfigExists reports whether the config file exists.
func ConfigExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads the YAML file at path, applies environment overrides, and validates the result.
// A missing file is tolerated so deployments can configure everything through the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	if errEnv := applyEnv(&cfg); errEnv != nil {
		return Config{}, errEnv
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// LoadDatabaseDSN loads only what is needed to reach the database.
func LoadDatabaseDSN(path string) (string, error) {
	cfg := Default()
	data, errRead := os.ReadFile(path)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return "", fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	} else if !errors.Is(errRead, os.ErrNotExist) {
		return "", fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if errEnv := applyEnv(&cfg); errEnv != nil {
		return "", errEnv
	}
	dsn := strings.TrimSpace(cfg.Database.DSN)
	if dsn == "" {
		return "", fmt.Errorf("config: database.dsn is required")
	}
	return dsn, nil
}

// Validate checks the configuration for values the core cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	if c.JWT.Expiry <= 0 || c.JWT.AdminExpiry <= 0 {
		return fmt.Errorf("config: jwt expiries must be positive")
	}
	if strings.TrimSpace(c.Webhook.Secret) == "" {
		return fmt.Errorf("config: webhook.secret is required")
	}
	if c.Webhook.Tolerance < 0 {
		return fmt.Errorf("config: webhook.tolerance must not be negative")
	}
	if c.Referral.SignupBonus < 0 || c.Referral.PayoutCredits < 0 {
		return fmt.Errorf("config: referral amounts must not be negative")
	}
	switch c.Referral.PayoutTrigger {
	case PayoutTriggerFirstPurchase, PayoutTriggerManual:
	default:
		return fmt.Errorf("config: unknown referral.payout-trigger %q", c.Referral.PayoutTrigger)
	}
	switch c.Cache.Driver {
	case CacheDriverMemory:
	case CacheDriverRedis:
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return fmt.Errorf("config: cache.redis-addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config: unknown cache.driver %q", c.Cache.Driver)
	}
	seen := make(map[string]struct{}, len(c.Packs))
	for i, pack := range c.Packs {
		id := strings.TrimSpace(pack.ID)
		if id == "" {
			return fmt.Errorf("config: packs[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("config: duplicate pack id %q", id)
		}
		seen[id] = struct{}{}
		if pack.Credits <= 0 {
			return fmt.Errorf("config: pack %q must grant positive credits", id)
		}
		if pack.PriceMinor < 0 {
			return fmt.Errorf("config: pack %q has a negative price", id)
		}
		if strings.TrimSpace(pack.Currency) == "" {
			return fmt.Errorf("config: pack %q requires a currency", id)
		}
	}
	return nil
}
