package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/statelink/statelink/internal/config"
	"github.com/statelink/statelink/internal/domain"
)

// UpsertUserPermalink stores the user's single-slot permalink, replacing
// any previous document. The key space is the username itself, so no
// collision handling is needed.
func (s *Store) UpsertUserPermalink(ctx context.Context, tenant config.TenantConfig, username string, data []byte) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s (username, data, date)
		VALUES ($1, $2, $3)
		ON CONFLICT (username)
		DO UPDATE SET data = EXCLUDED.data, date = EXCLUDED.date
	`, tenant.UserPermalinkTable)

	if _, err := s.execTx(ctx, sql, username, string(data), time.Now()); err != nil {
		return fmt.Errorf("upsert user permalink: %w", err)
	}
	return nil
}

// GetUserPermalink returns the user's single-slot document.
func (s *Store) GetUserPermalink(ctx context.Context, tenant config.TenantConfig, username string) ([]byte, error) {
	sql := fmt.Sprintf(`
		SELECT data
		FROM %s
		WHERE username = $1
	`, tenant.UserPermalinkTable)

	var data string
	if err := s.pool.QueryRow(ctx, sql, username).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get user permalink: %w", err)
	}
	return []byte(data), nil
}
