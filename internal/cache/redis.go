package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a ProfileCache shared between server instances.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps client. Keys are namespaced by prefix.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(accountID uint64) string {
	return r.prefix + "profile:" + strconv.FormatUint(accountID, 10)
}

// Get loads and decodes the cached profile; a missing key is a miss, not an error.
func (r *Redis) Get(ctx context.Context, accountID uint64) (Profile, bool, error) {
	raw, errGet := r.client.Get(ctx, r.key(accountID)).Bytes()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return Profile{}, false, nil
		}
		return Profile{}, false, fmt.Errorf("cache: redis get: %w", errGet)
	}
	var profile Profile
	if errUnmarshal := json.Unmarshal(raw, &profile); errUnmarshal != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = r.client.Del(ctx, r.key(accountID)).Err()
		return Profile{}, false, nil
	}
	return profile, true, nil
}

// Set stores profile with the configured TTL.
func (r *Redis) Set(ctx context.Context, profile Profile) error {
	raw, errMarshal := json.Marshal(profile)
	if errMarshal != nil {
		return fmt.Errorf("cache: encode profile: %w", errMarshal)
	}
	if errSet := r.client.Set(ctx, r.key(profile.AccountID), raw, r.ttl).Err(); errSet != nil {
		return fmt.Errorf("cache: redis set: %w", errSet)
	}
	return nil
}

// Delete removes the profile for accountID.
func (r *Redis) Delete(ctx context.Context, accountID uint64) error {
	if errDel := r.client.Del(ctx, r.key(accountID)).Err(); errDel != nil {
		return fmt.Errorf("cache: redis del: %w", errDel)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
