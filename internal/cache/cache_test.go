package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prepwise/creditcore/internal/config"
	"github.com/redis/go-redis/v9"
)

func TestMemoryExpiresEntries(t *testing.T) {
	m := NewMemory(time.Minute, 10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, Profile{AccountID: 1, Email: "a@example.com"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := m.Get(ctx, 1)
	if err != nil || !ok || got.Email != "a@example.com" {
		t.Fatalf("expected hit, got %+v ok=%v err=%v", got, ok, err)
	}

	now = now.Add(time.Minute)
	if _, ok, _ = m.Get(ctx, 1); ok {
		t.Fatalf("expected entry to expire")
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", m.Len())
	}
}

func TestMemoryEvictsOldestWhenFull(t *testing.T) {
	m := NewMemory(time.Hour, 2)
	ctx := context.Background()
	for id := uint64(1); id <= 3; id++ {
		if err := m.Set(ctx, Profile{AccountID: id}); err != nil {
			t.Fatalf("set %d: %v", id, err)
		}
	}
	if _, ok, _ := m.Get(ctx, 1); ok {
		t.Fatalf("expected oldest entry evicted")
	}
	if _, ok, _ := m.Get(ctx, 3); !ok {
		t.Fatalf("expected newest entry kept")
	}

	// Re-setting an entry moves it to the back of the eviction order.
	if err := m.Set(ctx, Profile{AccountID: 2, Email: "new"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := m.Set(ctx, Profile{AccountID: 4}); err != nil {
		t.Fatalf("set 4: %v", err)
	}
	if _, ok, _ := m.Get(ctx, 3); ok {
		t.Fatalf("expected entry 3 evicted")
	}
	if got, ok, _ := m.Get(ctx, 2); !ok || got.Email != "new" {
		t.Fatalf("expected refreshed entry 2, got %+v ok=%v", got, ok)
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory(time.Hour, 0)
	ctx := context.Background()
	_ = m.Set(ctx, Profile{AccountID: 9})
	if err := m.Delete(ctx, 9); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := m.Get(ctx, 9); ok {
		t.Fatalf("expected deleted entry to miss")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), config.CacheConfig{Driver: "memcached"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	r := NewRedis(client, "creditcore-test:", time.Minute)
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()

	if err := r.Set(ctx, Profile{AccountID: 77, Email: "r@example.com"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := r.Get(ctx, 77)
	if err != nil || !ok || got.Email != "r@example.com" {
		t.Fatalf("expected hit, got %+v ok=%v err=%v", got, ok, err)
	}
	if err = r.Delete(ctx, 77); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err = r.Get(ctx, 77); ok || err != nil {
		t.Fatalf("expected miss after delete, ok=%v err=%v", ok, err)
	}
}
