package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

// Store implements kvstore.Store on PostgreSQL. Every key has a kv_keys row;
// set, list and sorted-set members live in child tables that cascade on
// delete. Expired rows are invisible to reads and removed by PurgeExpired.
type Store struct {
	pool *pgxpool.Pool
}

var _ kvstore.Store = (*Store)(nil)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func expiry(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return time.Now().Add(ttl)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT k.value FROM kv_keys k WHERE k.key = $1 AND k.kind = 'blob' AND `+live, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_keys (key, kind, value, expires_at) VALUES ($1, 'blob', $2, $3)
		 ON CONFLICT (key) DO UPDATE SET kind = 'blob', value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiry(ttl))
	if err != nil {
		return storageErr("set", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_keys WHERE key = $1`, key); err != nil {
		return storageErr("delete", key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT k.key FROM kv_keys k WHERE starts_with(k.key, $1) AND `+live, prefix)
	if err != nil {
		return nil, storageErr("keys", prefix, err)
	}
	keys, err := collectStrings(rows)
	if err != nil {
		return nil, storageErr("keys", prefix, err)
	}
	return keys, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE kv_keys k SET expires_at = $2 WHERE k.key = $1 AND `+live, key, expiry(ttl))
	if err != nil {
		return storageErr("expire", key, err)
	}
	return nil
}

// withKey runs fn in a transaction after making sure a live kv_keys row of
// the given kind exists. An expired row is dropped first so its members do
// not leak into the new value.
func (s *Store) withKey(ctx context.Context, key, kind string, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM kv_keys WHERE key = $1 AND expires_at IS NOT NULL AND expires_at <= now()`, key); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO kv_keys (key, kind) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`, key, kind); err != nil {
			return err
		}
		return fn(tx)
	})
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	err := s.withKey(ctx, key, "set", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO kv_set_members (key, member) SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`,
			key, members)
		return err
	})
	if err != nil {
		return storageErr("sadd", key, err)
	}
	return nil
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM kv_set_members WHERE key = $1 AND member = ANY($2::text[])`, key, members)
	if err != nil {
		return storageErr("srem", key, err)
	}
	return nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.member FROM kv_set_members m JOIN kv_keys k ON k.key = m.key
		 WHERE m.key = $1 AND `+live, key)
	if err != nil {
		return nil, storageErr("smembers", key, err)
	}
	out, err := collectStrings(rows)
	if err != nil {
		return nil, storageErr("smembers", key, err)
	}
	return out, nil
}

func (s *Store) RPush(ctx context.Context, key string, values ...string) error {
	err := s.withKey(ctx, key, "list", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO kv_list_items (key, value) SELECT $1, v FROM unnest($2::text[]) WITH ORDINALITY AS t(v, n) ORDER BY n`,
			key, values)
		return err
	})
	if err != nil {
		return storageErr("rpush", key, err)
	}
	return nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT li.value FROM kv_list_items li JOIN kv_keys k ON k.key = li.key
		 WHERE li.key = $1 AND `+live+` ORDER BY li.seq`, key)
	if err != nil {
		return nil, storageErr("lrange", key, err)
	}
	all, err := collectStrings(rows)
	if err != nil {
		return nil, storageErr("lrange", key, err)
	}
	from, to, ok := kvstore.ClampRange(len(all), start, stop)
	if !ok {
		return []string{}, nil
	}
	return all[from:to], nil
}

func (s *Store) LRem(ctx context.Context, key string, value string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM kv_list_items li USING kv_keys k
		 WHERE li.key = k.key AND li.key = $1 AND li.value = $2 AND `+live, key, value)
	if err != nil {
		return 0, storageErr("lrem", key, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) LLen(ctx context.Context, key string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM kv_list_items li JOIN kv_keys k ON k.key = li.key
		 WHERE li.key = $1 AND `+live, key).Scan(&n)
	if err != nil {
		return 0, storageErr("llen", key, err)
	}
	return n, nil
}

func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	err := s.withKey(ctx, key, "zset", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO kv_zset_members (key, member, score) VALUES ($1, $2, $3)
			 ON CONFLICT (key, member) DO UPDATE SET score = EXCLUDED.score`, key, member, score)
		return err
	})
	if err != nil {
		return storageErr("zadd", key, err)
	}
	return nil
}

func (s *Store) ZRem(ctx context.Context, key string, member string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM kv_zset_members WHERE key = $1 AND member = $2`, key, member); err != nil {
		return storageErr("zrem", key, err)
	}
	return nil
}

func (s *Store) ZRange(ctx context.Context, key string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT z.member FROM kv_zset_members z JOIN kv_keys k ON k.key = z.key
		 WHERE z.key = $1 AND `+live+` ORDER BY z.score, z.member`, key)
	if err != nil {
		return nil, storageErr("zrange", key, err)
	}
	out, err := collectStrings(rows)
	if err != nil {
		return nil, storageErr("zrange", key, err)
	}
	return out, nil
}

// Incr increments the decimal counter stored under key. The upsert holds
// the row lock, so concurrent increments never lose an update.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`INSERT INTO kv_keys AS k (key, kind, value) VALUES ($1, 'blob', '1')
		 ON CONFLICT (key) DO UPDATE SET
		   value = convert_to((CASE WHEN `+live+` AND k.value IS NOT NULL
		                            THEN convert_from(k.value, 'UTF8')::bigint ELSE 0 END + 1)::text, 'UTF8'),
		   expires_at = CASE WHEN `+live+` THEN k.expires_at END
		 RETURNING k.value`, key).Scan(&raw)
	if err != nil {
		return 0, storageErr("incr", key, err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, storageErr("incr", key, err)
	}
	return n, nil
}

// PurgeExpired deletes expired keys and their members. Reads already skip
// them; this only reclaims space.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_keys WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, storageErr("purge", "", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storageErr("ping", "", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
