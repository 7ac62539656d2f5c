// Package memkv implements kvstore.Store in process memory. It backs local
// development and tests; nothing survives a restart.
package memkv

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

type entry struct {
	blob     []byte
	set      map[string]struct{}
	list     []string
	zset     map[string]float64
	expireAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// Store is a mutex-guarded map of typed entries with lazy expiry.
type Store struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time
}

var _ kvstore.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string]*entry), now: time.Now}
}

// live returns the entry under key, dropping it if expired. Caller holds mu.
func (s *Store) live(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if e.expired(s.now()) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *Store) ensure(key string) *entry {
	e := s.live(key)
	if e == nil {
		e = &entry{}
		s.data[key] = e
	}
	return e
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil || e.blob == nil {
		return nil, fmt.Errorf("get %s: %w", key, domain.ErrNotFound)
	}
	out := make([]byte, len(e.blob))
	copy(out, e.blob)
	return out, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{blob: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) && s.live(k) != nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil {
		e.expireAt = s.now().Add(ttl)
	}
	return nil
}

func (s *Store) SAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	if e.set == nil {
		e.set = make(map[string]struct{}, len(members))
	}
	for _, m := range members {
		e.set[m] = struct{}{}
	}
	return nil
}

func (s *Store) SRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil {
		for _, m := range members {
			delete(e.set, m)
		}
	}
	return nil
}

func (s *Store) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return []string{}, nil
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) RPush(_ context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	e.list = append(e.list, values...)
	return nil
}

func (s *Store) LRange(_ context.Context, key string, start, stop int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return []string{}, nil
	}
	from, to, ok := kvstore.ClampRange(len(e.list), start, stop)
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), e.list[from:to]...), nil
}

func (s *Store) LRem(_ context.Context, key string, value string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return 0, nil
	}
	kept := e.list[:0]
	removed := 0
	for _, v := range e.list {
		if v == value {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	e.list = kept
	return removed, nil
}

func (s *Store) LLen(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil {
		return len(e.list), nil
	}
	return 0, nil
}

func (s *Store) ZAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	if e.zset == nil {
		e.zset = make(map[string]float64)
	}
	e.zset[member] = score
	return nil
}

func (s *Store) ZRem(_ context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil {
		delete(e.zset, member)
	}
	return nil
}

func (s *Store) ZRange(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return []string{}, nil
	}
	out := make([]string, 0, len(e.zset))
	for m := range e.zset {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := e.zset[out[i]], e.zset[out[j]]
		if si != sj {
			return si < sj
		}
		return out[i] < out[j]
	})
	return out, nil
}

func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	var n int64
	if e.blob != nil {
		v, err := strconv.ParseInt(string(e.blob), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer: %w", key, domain.ErrValidation)
		}
		n = v
	}
	n++
	e.blob = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
