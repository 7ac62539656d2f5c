// Package cachedkv puts a read-through cache in front of blob reads from a
// kvstore.Store. Every write path that can change a blob invalidates it.
package cachedkv

import (
	"context"
	"log/slog"
	"time"

	"github.com/GustheTrader/Build-flow/internal/port/cache"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

// Store decorates a kvstore.Store. Only Get is served from the cache; the
// set, list and sorted-set operations pass straight through.
type Store struct {
	kvstore.Store
	cache cache.Cache
	ttl   time.Duration
}

var _ kvstore.Store = (*Store)(nil)

// New wraps inner. ttl bounds how long a blob stays cached.
func New(inner kvstore.Store, c cache.Cache, ttl time.Duration) *Store {
	return &Store{Store: inner, cache: c, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if val, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return val, nil
	} else if err != nil {
		slog.WarnContext(ctx, "cache get failed", "key", key, "error", err)
	}

	val, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, val, s.ttl); err != nil {
		slog.WarnContext(ctx, "cache fill failed", "key", key, "error", err)
	}
	return val, nil
}

// Set writes through and drops the cached copy. The next Get refills it, so
// a key written with a short ttl is never cached past its expiry by more
// than the cache ttl.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.Store.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.Store.Delete(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.Store.Expire(ctx, key, ttl); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.Store.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, key)
	return n, nil
}

func (s *Store) invalidate(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "cache invalidate failed", "key", key, "error", err)
	}
}
