package cache

import (
	"context"
	"strings"
	"time"
)

// Backend is a key/value store with per-entry TTL plus set operations
// for the alert indexes. Implementations: MongoBackend (durable) and
// MemoryBackend (bounded, used for tests and degraded mode).
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)

	SetAdd(ctx context.Context, key, member string) error
	SetRemove(ctx context.Context, key, member string) error
	SetMembers(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
}

// matchPattern reports whether key matches a glob pattern supporting
// only the '*' wildcard. Complexity is linear in key length, keeping
// pattern matching bounded regardless of caller input.
func matchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}
	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]
	last := len(parts) - 1
	for i := 1; i < last; i++ {
		idx := strings.Index(key, parts[i])
		if idx < 0 {
			return false
		}
		key = key[idx+len(parts[i]):]
	}
	return strings.HasSuffix(key, parts[last])
}
