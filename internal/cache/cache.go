// Package cache keeps short-lived session profiles. It never holds balances: those are
// always read from the account store.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prepwise/creditcore/internal/config"
	"github.com/redis/go-redis/v9"
)

// Profile is the cached identity used by authenticated requests.
type Profile struct {
	AccountID uint64 `json:"account_id" redis:"account_id"`
	Email     string `json:"email" redis:"email"`
	Disabled  bool   `json:"disabled" redis:"disabled"`
}

// ProfileCache stores profiles with a bounded lifetime.
type ProfileCache interface {
	Get(ctx context.Context, accountID uint64) (Profile, bool, error)
	Set(ctx context.Context, profile Profile) error
	Delete(ctx context.Context, accountID uint64) error
	Close() error
}

// New builds the cache selected by cfg.Driver.
func New(ctx context.Context, cfg config.CacheConfig) (ProfileCache, error) {
	switch strings.TrimSpace(cfg.Driver) {
	case "", config.CacheDriverMemory:
		return NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case config.CacheDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if errPing := client.Ping(pingCtx).Err(); errPing != nil {
			_ = client.Close()
			return nil, fmt.Errorf("cache: redis ping: %w", errPing)
		}
		return NewRedis(client, cfg.KeyPrefix, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}
