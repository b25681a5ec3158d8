package postgres

import (
	"fmt"

	"github.com/statelink/statelink/internal/config"
	"github.com/statelink/statelink/internal/domain"
)

// ownerSQL builds the query text for owner-scoped record operations. The
// addressing mode decides whether rows are matched by the raw username or
// by a stable user id resolved through the tenant's users table; the
// public store contract is identical either way.
//
// Parameter order is fixed across both modes: $1 = username, then the
// operation's remaining arguments.
type ownerSQL struct {
	addressing domain.OwnerAddressing
	usersTable string
}

func ownerQueries(tenant config.TenantConfig) ownerSQL {
	return ownerSQL{addressing: tenant.Addressing, usersTable: tenant.UsersTable}
}

// userCTE resolves the owner's stable id from the users table.
func (o ownerSQL) userCTE() string {
	return fmt.Sprintf(`WITH usr AS (SELECT id FROM %s WHERE name = $1)`, o.usersTable)
}

func (o ownerSQL) list(table, sortOrder string) string {
	if o.addressing == domain.ByID {
		return fmt.Sprintf(`
			%s
			SELECT key, description, to_char(date, 'YYYY-MM-DD') AS date
			FROM %s
			WHERE user_id = (SELECT id FROM usr)
			ORDER BY %s
		`, o.userCTE(), table, sortOrder)
	}
	return fmt.Sprintf(`
		SELECT key, description, to_char(date, 'YYYY-MM-DD') AS date
		FROM %s
		WHERE username = $1
		ORDER BY %s
	`, table, sortOrder)
}

// insert builds the create statement. Under id addressing every call is a
// true insert and colliding keys surface as unique violations; under
// username addressing a colliding key replaces the existing row, matching
// the upstream conflict-aware behavior.
func (o ownerSQL) insert(table string) string {
	if o.addressing == domain.ByID {
		return fmt.Sprintf(`
			%s
			INSERT INTO %s (user_id, username, data, key, date, description)
			VALUES ((SELECT id FROM usr), $1, $2, $3, $4, $5)
		`, o.userCTE(), table)
	}
	return fmt.Sprintf(`
		INSERT INTO %s (username, data, key, date, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username, key)
		DO UPDATE SET data = EXCLUDED.data, date = EXCLUDED.date, description = EXCLUDED.description
	`, table)
}

func (o ownerSQL) get(table string) string {
	if o.addressing == domain.ByID {
		return fmt.Sprintf(`
			%s
			SELECT data
			FROM %s
			WHERE user_id = (SELECT id FROM usr) AND key = $2
		`, o.userCTE(), table)
	}
	return fmt.Sprintf(`
		SELECT data
		FROM %s
		WHERE username = $1 AND key = $2
	`, table)
}

func (o ownerSQL) update(table string) string {
	if o.addressing == domain.ByID {
		return fmt.Sprintf(`
			%s
			UPDATE %s
			SET data = $3, date = $4, description = $5
			WHERE user_id = (SELECT id FROM usr) AND key = $2
		`, o.userCTE(), table)
	}
	return fmt.Sprintf(`
		UPDATE %s
		SET data = $3, date = $4, description = $5
		WHERE username = $1 AND key = $2
	`, table)
}

func (o ownerSQL) delete(table string) string {
	if o.addressing == domain.ByID {
		return fmt.Sprintf(`
			%s
			DELETE FROM %s
			WHERE user_id = (SELECT id FROM usr) AND key = $2
		`, o.userCTE(), table)
	}
	return fmt.Sprintf(`
		DELETE FROM %s
		WHERE username = $1 AND key = $2
	`, table)
}
