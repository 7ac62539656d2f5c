package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

// getJSON loads and decodes the blob at key.
func getJSON[T any](ctx context.Context, store kvstore.Store, key string) (*T, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// putJSON encodes v and stores it at key. A zero ttl means no expiry.
func putJSON(ctx context.Context, store kvstore.Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(ctx, key, raw, ttl)
}

// loadAll resolves ids through keyFn. Ids whose blob has gone missing (for
// example expired) are skipped; any other failure aborts.
func loadAll[T any](ctx context.Context, store kvstore.Store, ids []string, keyFn func(string) string) ([]T, error) {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v, err := getJSON[T](ctx, store, keyFn(id))
		if errors.Is(err, domain.ErrNotFound) {
			slog.DebugContext(ctx, "index entry without blob", "key", keyFn(id))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// nextNumber formats a yearly sequence number such as INV-2026-00001.
func nextNumber(ctx context.Context, store kvstore.Store, counterKey, prefix string, now time.Time) (string, error) {
	n, err := store.Incr(ctx, counterKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%05d", prefix, now.Year(), n), nil
}

func today(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
