package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx,
// so every query can run both standalone and inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the single source of truth for entries, tags, links, the
// derived-value cache and settings.
type Store struct {
	db DBTX

	// sdb can begin transactions; nil inside WithTx.
	sdb *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db, sdb: db}
}

// WithTx runs fn atomically. Any error returned from fn rolls back
// every write made within it and is propagated to the caller; a nil
// return commits. Nested calls join the enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.sdb == nil {
		return fn(s)
	}

	tx, err := s.sdb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&Store{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// escapeLike makes q safe for use inside a LIKE pattern with
// ESCAPE '\': wildcard metacharacters match only themselves.
func escapeLike(q string) string {
	out := make([]byte, 0, len(q))
	for i := 0; i < len(q); i++ {
		switch q[i] {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, q[i])
	}
	return string(out)
}
