// Package postgres is the record store adapter. Each operation runs in its
// own transaction scope against the pool; no state is shared between
// requests. Table identifiers are interpolated into query text, which is
// safe because they are validated against an allow-list pattern when the
// tenant configuration is loaded.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statelink/statelink/internal/domain"
	"github.com/statelink/statelink/internal/keygen"
	"github.com/statelink/statelink/internal/logger"
)

// uniqueViolation is the SQLSTATE for a unique-constraint failure. The
// retry policy treats every insert error the same way, but collisions and
// genuine outages are logged distinctly for operators.
const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
	gen  *keygen.Generator
	log  logger.Logger
}

func NewStore(pool *pgxpool.Pool, gen *keygen.Generator, log logger.Logger) *Store {
	return &Store{pool: pool, gen: gen, log: log}
}

// Ping verifies store connectivity. Only the liveness-check path calls
// this; it is the one place raw store errors reach a response.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// execTx runs a single statement in its own transaction scope, released on
// every exit path.
func (s *Store) execTx(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("commit: %w", err)
	}
	return tag, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
