package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

const maxUpdateAttempts = 16

const (
	kindBlob = "blob"
	kindSet  = "set"
	kindList = "list"
	kindZSet = "zset"
)

// envelope is the stored form of every value. Expiry is per key and applied
// lazily on read because bucket TTLs are bucket wide.
type envelope struct {
	Kind      string             `json:"kind"`
	Blob      []byte             `json:"blob,omitempty"`
	Set       []string           `json:"set,omitempty"`
	List      []string           `json:"list,omitempty"`
	ZSet      map[string]float64 `json:"zset,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

func (e *envelope) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Store implements kvstore.Store on a JetStream KV bucket. Compound values
// are rewritten with optimistic revision checks.
type Store struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

var _ kvstore.Store = (*Store)(nil)

// New creates a Store on kv.
func New(kv jetstream.KeyValue) *Store {
	return &Store{kv: kv, now: time.Now}
}

func storageErr(op, key string, err error) error {
	return fmt.Errorf("natskv %s %s: %w: %v", op, key, domain.ErrStorage, err)
}

// load returns the live envelope under key and the revision to update
// against. A missing or expired key yields a nil envelope.
func (s *Store) load(ctx context.Context, key string) (*envelope, uint64, error) {
	entry, err := s.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, nil
		}
		return nil, 0, storageErr("get", key, err)
	}
	var env envelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, 0, storageErr("decode", key, err)
	}
	if env.expired(s.now()) {
		return nil, entry.Revision(), nil
	}
	return &env, entry.Revision(), nil
}

func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// update applies fn to the current envelope and writes the result if no
// other writer got there first. A nil result from fn leaves the key as is.
func (s *Store) update(ctx context.Context, key string, fn func(cur *envelope) (*envelope, error)) error {
	enc := encodeKey(key)
	for range maxUpdateAttempts {
		cur, rev, err := s.load(ctx, key)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return storageErr("encode", key, err)
		}
		if rev == 0 {
			_, err = s.kv.Create(ctx, enc, data)
		} else {
			_, err = s.kv.Update(ctx, enc, data, rev)
		}
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return storageErr("update", key, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return storageErr("update", key, errors.New("too many concurrent writers"))
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	env, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if env == nil || env.Kind != kindBlob {
		return nil, fmt.Errorf("get %s: %w", key, domain.ErrNotFound)
	}
	return env.Blob, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	env := envelope{Kind: kindBlob, Blob: value}
	if ttl > 0 {
		exp := s.now().Add(ttl)
		env.ExpiresAt = &exp
	}
	data, err := json.Marshal(env)
	if err != nil {
		return storageErr("encode", key, err)
	}
	if _, err := s.kv.Put(ctx, encodeKey(key), data); err != nil {
		return storageErr("put", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, encodeKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return storageErr("delete", key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, storageErr("keys", prefix, err)
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for enc := range lister.Keys() {
		key, err := decodeKey(enc)
		if err != nil || !strings.HasPrefix(key, prefix) {
			continue
		}
		env, _, err := s.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if env != nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.update(ctx, key, func(cur *envelope) (*envelope, error) {
		if cur == nil {
			return nil, nil
		}
		exp := s.now().Add(ttl)
		cur.ExpiresAt = &exp
		return cur, nil
	})
}

// typed returns cur when it holds kind, or a fresh envelope of that kind.
func typed(cur *envelope, kind string) *envelope {
	if cur == nil || cur.Kind != kind {
		return &envelope{Kind: kind}
	}
	return cur
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	return s.update(ctx, key, func(cur *envelope) (*envelope, error) {
		env := typed(cur, kindSet)
		for _, m := range members {
			if !slices.Contains(env.Set, m) {
				env.Set = append(env.Set, m)
			}
		}
		return env, nil
	})
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	return s.update(ctx, key, func(cur *envelope) (*envelope, error) {
		if cur == nil || cur.Kind != kindSet {
			return nil, nil
		}
		cur.Set = slices.DeleteFunc(cur.Set, func(m string) bool { return slices.Contains(members, m) })
		return cur, nil
	})
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	env, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if env == nil || env.Kind != kindSet {
		return []string{}, nil
	}
	return append([]string{}, env.Set...), nil
}

func (s *Store) RPush(ctx context.Context, key string, values ...string) error {
	return s.update(ctx, key, func(cur *envelope) (*envelope, error) {
		env := typed(cur, kindList)
		env.List = append(env.List, values...)
		return env, nil
	})
}

func (s *Store) list(ctx context.Context, key string) ([]string, error) {
	env, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if env == nil || env.Kind != kindList {
		return nil, nil
	}
	return env.List, nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	l, err := s.list(ctx, key)
	if err != nil {
		return nil, err
	}
	from, to, ok := kvstore.ClampRange(len(l), start, stop)
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, l[from:to]...), nil
}

func (s *Store) LRem(ctx context.Context, key string, value string) (int, error) {
	removed := 0
	err := s.update(ctx, key, func(cur *envelope) (*envelope, error) {
		removed = 0
		if cur == nil || cur.Kind != kindList {
			return nil, nil
		}
		before := len(cur.List)
		cur.List = slices.DeleteFunc(cur.List, func(v string) bool { return v == value })
		removed = before - len(cur.List)
		if removed == 0 {
			return nil, nil
		}
		return cur, nil
	})
	return removed, err
}

func (s *Store) LLen(ctx context.Context, key string) (int, error) {
	l, err := s.list(ctx, key)
	return len(l), err
}

func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.update(ctx, key, func(cur *envelope) (*envelope, error) {
		env := typed(cur, kindZSet)
		if env.ZSet == nil {
			env.ZSet = make(map[string]float64)
		}
		env.ZSet[member] = score
		return env, nil
	})
}

func (s *Store) ZRem(ctx context.Context, key string, member string) error {
	return s.update(ctx, key, func(cur *envelope) (*envelope, error) {
		if cur == nil || cur.Kind != kindZSet {
			return nil, nil
		}
		delete(cur.ZSet, member)
		return cur, nil
	})
}

func (s *Store) ZRange(ctx context.Context, key string) ([]string, error) {
	env, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if env == nil || env.Kind != kindZSet {
		return []string{}, nil
	}
	return orderByScore(env.ZSet), nil
}

func orderByScore(z map[string]float64) []string {
	out := make([]string, 0, len(z))
	for m := range z {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if z[out[i]] != z[out[j]] {
			return z[out[i]] < z[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.update(ctx, key, func(cur *envelope) (*envelope, error) {
		n = 0
		env := typed(cur, kindBlob)
		if len(env.Blob) > 0 {
			v, err := strconv.ParseInt(string(env.Blob), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("incr %s: value is not an integer: %w", key, domain.ErrValidation)
			}
			n = v
		}
		n++
		env.Blob = []byte(strconv.FormatInt(n, 10))
		return env, nil
	})
	return n, err
}

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.kv.Status(ctx); err != nil {
		return storageErr("ping", s.kv.Bucket(), err)
	}
	return nil
}

// Close is a no-op; the NATS connection belongs to the queue adapter.
func (s *Store) Close() error { return nil }
