package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds the in-memory fallback so degraded mode
// cannot grow without limit
const DefaultMemoryEntries = 4096

type memoryEntry struct {
	value     []byte
	members   map[string]struct{}
	expiresAt time.Time // zero means no expiry
}

// MemoryBackend is a bounded in-memory Backend. It backs unit tests and
// the cache's degraded mode when the durable backend is unreachable.
type MemoryBackend struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *memoryEntry]
	now     func() time.Time
}

// NewMemoryBackend creates a memory backend holding at most size entries.
// now is injectable for TTL tests; pass nil for the wall clock.
func NewMemoryBackend(size int, now func() time.Time) *MemoryBackend {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	if now == nil {
		now = time.Now
	}
	entries, _ := lru.New[string, *memoryEntry](size)
	return &MemoryBackend{entries: entries, now: now}
}

// live returns the entry for key if present and unexpired, lazily
// evicting stale entries. Caller must hold mu.
func (m *MemoryBackend) live(key string) (*memoryEntry, bool) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.entries.Remove(key)
		return nil, false
	}
	return entry, true
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.live(key)
	if !ok || entry.value == nil {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := &memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries.Add(key, entry)
	return nil
}

func (m *MemoryBackend) Del(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Remove(key), nil
}

func (m *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

func (m *MemoryBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, key := range m.entries.Keys() {
		if _, ok := m.live(key); !ok {
			continue
		}
		if matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *MemoryBackend) SetAdd(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.live(key)
	if !ok {
		entry = &memoryEntry{members: make(map[string]struct{})}
		m.entries.Add(key, entry)
	} else if entry.members == nil {
		entry.members = make(map[string]struct{})
	}
	entry.members[member] = struct{}{}
	return nil
}

func (m *MemoryBackend) SetRemove(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.live(key)
	if !ok || entry.members == nil {
		return nil
	}
	delete(entry.members, member)
	if len(entry.members) == 0 {
		m.entries.Remove(key)
	}
	return nil
}

func (m *MemoryBackend) SetMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.live(key)
	if !ok || entry.members == nil {
		return nil, nil
	}
	members := make([]string, 0, len(entry.members))
	for member := range entry.members {
		members = append(members, member)
	}
	return members, nil
}

func (m *MemoryBackend) Ping(_ context.Context) error { return nil }

// Len reports the number of entries currently held
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}
