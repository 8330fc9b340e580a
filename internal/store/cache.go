package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCache returns the cached value for key. When dependsOn is
// non-nil, the value counts as a hit only if the stored dependency
// token equals it; any mismatch (including a missing stored token) is
// a miss. There is no time-based expiry.
func (s *Store) GetCache(ctx context.Context, key string, dependsOn *string) (string, bool, error) {
	const q = `SELECT value, depends_on FROM cache_entries WHERE key = ?`
	var value string
	var stored sql.NullString
	err := s.db.QueryRowContext(ctx, q, key).Scan(&value, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cache: %w", err)
	}

	if dependsOn != nil {
		if !stored.Valid || stored.String != *dependsOn {
			return "", false, nil
		}
	}
	return value, true, nil
}

// SetCache upserts a cached value, fully replacing any prior value and
// dependency token for the key.
func (s *Store) SetCache(ctx context.Context, key, value string, dependsOn *string) error {
	const q = `
INSERT INTO cache_entries (key, value, depends_on, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	value = excluded.value,
	depends_on = excluded.depends_on,
	updated_at = excluded.updated_at
`
	if _, err := s.db.ExecContext(ctx, q, key, value, dependsOn, time.Now().UTC()); err != nil {
		return fmt.Errorf("set cache: %w", err)
	}
	return nil
}
