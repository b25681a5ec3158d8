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

// ListOwnerRecords returns the owner's records of the given kind, ordered
// by the tenant's configured sort order. Ordering happens in the query so
// pagination can be added without changing callers.
func (s *Store) ListOwnerRecords(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner string) ([]domain.RecordSummary, error) {
	queries := ownerQueries(tenant)
	sql := queries.list(tenant.RecordTable(kind), tenant.SortOrder)

	rows, err := s.pool.Query(ctx, sql, owner)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	records := []domain.RecordSummary{}
	for rows.Next() {
		var rec domain.RecordSummary
		var description *string
		if err := rows.Scan(&rec.Key, &description, &rec.Date); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind, err)
		}
		if description != nil {
			rec.Description = *description
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return records, nil
}

// CreateOwnerRecord inserts a record under a generated key and returns the
// key.
func (s *Store) CreateOwnerRecord(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner string, data []byte, description string) (string, error) {
	queries := ownerQueries(tenant)
	sql := queries.insert(tenant.RecordTable(kind))
	today := time.Now()

	key, attempts, err := s.gen.InsertWithRetry(data, func(key string) error {
		_, execErr := s.execTx(ctx, sql, owner, string(data), key, today, nullable(description))
		if execErr != nil && !isUniqueViolation(execErr) {
			s.log.Warn("record insert failed with non-collision error",
				logger.String("tenant", tenant.Name),
				logger.String("kind", kind.String()),
				logger.Error(execErr))
		}
		return execErr
	})
	if err != nil {
		return "", err
	}
	if attempts > 1 {
		s.log.Info("record key collided before success",
			logger.String("tenant", tenant.Name),
			logger.String("kind", kind.String()),
			logger.String("key", key),
			logger.Int("attempts", attempts))
	}
	return key, nil
}

// GetOwnerRecord returns the stored document bytes for an owner's key.
func (s *Store) GetOwnerRecord(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner, key string) ([]byte, error) {
	queries := ownerQueries(tenant)
	sql := queries.get(tenant.RecordTable(kind))

	var data string
	if err := s.pool.QueryRow(ctx, sql, owner, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return []byte(data), nil
}

// ReplaceOwnerRecord overwrites an existing record in full. It does not
// create absent keys; that distinction is what separates replace from
// create.
func (s *Store) ReplaceOwnerRecord(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner, key string, data []byte, description string) error {
	queries := ownerQueries(tenant)
	sql := queries.update(tenant.RecordTable(kind))

	tag, err := s.execTx(ctx, sql, owner, key, string(data), time.Now(), nullable(description))
	if err != nil {
		return fmt.Errorf("replace %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteOwnerRecord removes an owner's record. Deleting an absent key is
// not an error.
func (s *Store) DeleteOwnerRecord(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner, key string) error {
	queries := ownerQueries(tenant)
	sql := queries.delete(tenant.RecordTable(kind))

	if _, err := s.execTx(ctx, sql, owner, key); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return nil
}
