// Package rendercache is a generic TTL cache for assembled render
// artifacts (HTML/PNG/JSON bytes keyed by path), so a repeat request
// within the TTL window skips reassembly entirely. Grounded on the
// teacher's CacheBackend/MemorySessionStore/RedisCache trio
// (cache_interface.go, cache_memory.go, cache_redis.go), repurposed from
// session/NIP-46 caching to render-output caching.
package rendercache

import (
	"context"
	"time"
)

// Backend is the interface internal/httpapi depends on; Memory and Redis
// are the two concrete implementations, selected by config.RedisURL being
// set or empty.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
