package tenant

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore reads memberships from the user_tenant_memberships table.
//
// NOTE: This store assumes the following table exists:
// - user_tenant_memberships (id uuid PK, user_id, tenant_id, role, status,
//   created_at, updated_at) with UNIQUE (user_id, tenant_id)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, userID, tenantID string) (Membership, error) {
	const q = `
SELECT id, user_id, tenant_id, role, status, created_at, updated_at
FROM user_tenant_memberships
WHERE user_id = $1 AND tenant_id = $2
`
	var m Membership
	if err := s.db.QueryRowContext(ctx, q, userID, tenantID).Scan(
		&m.ID,
		&m.UserID,
		&m.TenantID,
		&m.Role,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Membership{}, ErrNotFound
		}
		return Membership{}, err
	}
	return m, nil
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID string) ([]Membership, error) {
	const q = `
SELECT id, user_id, tenant_id, role, status, created_at, updated_at
FROM user_tenant_memberships
WHERE user_id = $1
ORDER BY created_at
`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.TenantID,
			&m.Role,
			&m.Status,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
