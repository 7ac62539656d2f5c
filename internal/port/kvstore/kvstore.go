// Package kvstore defines the port for the schema-less key/value store that
// holds every entity as a JSON blob, plus the set, list, sorted-set and
// counter primitives used for indexes and queues.
package kvstore

import (
	"context"
	"time"
)

// Store is the port interface for the persistent key/value store.
// Implementations wrap backend failures with domain.ErrStorage and report
// a missing key from Get with domain.ErrNotFound.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Keys returns every live key with the given prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	RPush(ctx context.Context, key string, values ...string) error
	// LRange follows Redis index semantics: negative indexes count from the end
	// and stop is inclusive.
	LRange(ctx context.Context, key string, start, stop int) ([]string, error)
	// LRem removes every occurrence of value and returns how many were removed.
	LRem(ctx context.Context, key string, value string) (int, error)
	LLen(ctx context.Context, key string) (int, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, member string) error
	// ZRange returns members ordered by ascending score, ties by member.
	ZRange(ctx context.Context, key string) ([]string, error)

	Incr(ctx context.Context, key string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ClampRange resolves Redis-style start/stop indexes against a list of length n.
// ok is false when the range is empty.
func ClampRange(n, start, stop int) (from, to int, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop + 1, true
}
