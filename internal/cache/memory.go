package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	profile   Profile
	expiresAt time.Time
}

// Memory is an in-process ProfileCache with TTL expiry and a size cap.
// When full, the oldest inserted entry is evicted.
type Memory struct {
	mu         sync.Mutex
	entries    map[uint64]*memoryEntry
	order      []uint64
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemory returns an empty Memory cache.
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[uint64]*memoryEntry),
		order:      make([]uint64, 0),
		ttl:        ttl,
		maxEntries: maxEntries,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Get returns the cached profile; expired entries are dropped and reported as misses.
func (m *Memory) Get(_ context.Context, accountID uint64) (Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[accountID]
	if !ok {
		return Profile{}, false, nil
	}
	if m.expiredLocked(entry, m.now()) {
		m.removeLocked(accountID)
		return Profile{}, false, nil
	}
	return entry.profile, true, nil
}

// Set stores profile for the configured TTL, evicting the oldest entries when full.
func (m *Memory) Set(_ context.Context, profile Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, exists := m.entries[profile.AccountID]; exists {
		m.removeLocked(profile.AccountID)
	}
	m.entries[profile.AccountID] = &memoryEntry{profile: profile, expiresAt: now.Add(m.ttl)}
	m.order = append(m.order, profile.AccountID)
	m.cleanupExpiredLocked(now)
	m.enforceMaxEntriesLocked()
	return nil
}

// Delete removes the profile for accountID if present.
func (m *Memory) Delete(_ context.Context, accountID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(accountID)
	return nil
}

// Close is a no-op for the in-process cache.
func (m *Memory) Close() error { return nil }

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupExpiredLocked(m.now())
	return len(m.entries)
}

func (m *Memory) expiredLocked(entry *memoryEntry, now time.Time) bool {
	return m.ttl > 0 && !now.Before(entry.expiresAt)
}

func (m *Memory) cleanupExpiredLocked(now time.Time) {
	if m.ttl <= 0 || len(m.order) == 0 {
		return
	}
	kept := make([]uint64, 0, len(m.order))
	for _, id := range m.order {
		entry, ok := m.entries[id]
		if !ok {
			continue
		}
		if m.expiredLocked(entry, now) {
			delete(m.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func (m *Memory) enforceMaxEntriesLocked() {
	if m.maxEntries <= 0 {
		return
	}
	for len(m.entries) > m.maxEntries && len(m.order) > 0 {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
}

func (m *Memory) removeLocked(accountID uint64) {
	delete(m.entries, accountID)
	for i, id := range m.order {
		if id == accountID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
