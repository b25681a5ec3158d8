package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/statelink/statelink/internal/config"
	"github.com/statelink/statelink/internal/domain"
	"github.com/statelink/statelink/internal/logger"
)

// CreatePermalink inserts a new global permalink under a generated key and
// returns the key and expiry date (nil when the tenant has no default
// expiry period). A successful create triggers a best-effort sweep of
// expired rows.
func (s *Store) CreatePermalink(ctx context.Context, tenant config.TenantConfig, data []byte, permittedGroup string) (string, *time.Time, error) {
	today := time.Now()
	var expires *time.Time
	if tenant.DefaultExpiryDays > 0 {
		e := today.AddDate(0, 0, tenant.DefaultExpiryDays)
		expires = &e
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (key, data, date, expires, permitted_group)
		VALUES ($1, $2, $3, $4, $5)
	`, tenant.PermalinksTable)

	key, attempts, err := s.gen.InsertWithRetry(data, func(key string) error {
		_, execErr := s.execTx(ctx, sql, key, string(data), today, expires, nullable(permittedGroup))
		if execErr != nil && !isUniqueViolation(execErr) {
			// Still retried like a collision, but outages must not hide
			// behind the retry loop silently.
			s.log.Warn("permalink insert failed with non-collision error",
				logger.String("tenant", tenant.Name),
				logger.Error(execErr))
		}
		return execErr
	})
	if err != nil {
		return "", nil, err
	}
	if attempts > 1 {
		s.log.Info("permalink key collided before success",
			logger.String("tenant", tenant.Name),
			logger.String("key", key),
			logger.Int("attempts", attempts))
	}

	// Piggybacked expiry cleanup: best effort, independent of the create.
	if _, sweepErr := s.SweepExpired(ctx, tenant); sweepErr != nil {
		s.log.Warn("expiry sweep failed",
			logger.String("tenant", tenant.Name),
			logger.Error(sweepErr))
	}

	return key, expires, nil
}

// ResolvePermalink returns the stored document bytes and the optional
// permitted group for a key. Rows past their expiry date are treated as
// not found even if the sweeper has not removed them yet.
func (s *Store) ResolvePermalink(ctx context.Context, tenant config.TenantConfig, key string) ([]byte, string, error) {
	sql := fmt.Sprintf(`
		SELECT data, permitted_group
		FROM %s
		WHERE key = $1 AND (expires IS NULL OR expires >= CURRENT_DATE)
	`, tenant.PermalinksTable)

	var data string
	var permittedGroup *string
	err := s.pool.QueryRow(ctx, sql, key).Scan(&data, &permittedGroup)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("resolve permalink: %w", err)
	}

	group := ""
	if permittedGroup != nil {
		group = *permittedGroup
	}
	return []byte(data), group, nil
}

// SweepExpired deletes every permalink row past its expiry date and
// returns the number of rows removed.
func (s *Store) SweepExpired(ctx context.Context, tenant config.TenantConfig) (int64, error) {
	sql := fmt.Sprintf(`
		DELETE FROM %s
		WHERE expires < CURRENT_DATE
	`, tenant.PermalinksTable)

	tag, err := s.execTx(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("sweep expired permalinks: %w", err)
	}
	return tag.RowsAffected(), nil
}
