package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/GustheTrader/Build-flow/internal/domain"
)

// live filters kv_keys rows (aliased k) to those that have not expired.
const live = `(k.expires_at IS NULL OR k.expires_at > now())`

// storageErr wraps a driver failure with domain.ErrStorage.
func storageErr(op, key string, err error) error {
	return fmt.Errorf("postgres %s %s: %w: %v", op, key, domain.ErrStorage, err)
}

// collectStrings drains rows holding a single text column.
func collectStrings(rows pgx.Rows) ([]string, error) {
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
