package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore reads principals from the users table.
//
// NOTE: This store assumes the following table exists:
// - users (id uuid PK, email unique, full_name, locale, is_active,
//   platform_roles text[], last_login_at, created_at, updated_at)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const principalColumns = `id, email, full_name, locale, is_active, platform_roles, last_login_at, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Principal, error) {
	const q = `
SELECT ` + principalColumns + `
FROM users
WHERE id = $1
`
	return s.scanOne(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Principal, error) {
	const q = `
SELECT ` + principalColumns + `
FROM users
WHERE lower(email) = lower($1)
`
	return s.scanOne(s.db.QueryRowContext(ctx, q, email))
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const q = `
UPDATE users
SET last_login_at = $2, updated_at = now()
WHERE id = $1
`
	_, err := s.db.ExecContext(ctx, q, id, at.UTC())
	return err
}

func (s *PostgresStore) scanOne(row *sql.Row) (Principal, error) {
	var p Principal
	var roles rolesScanner
	var lastLogin sql.NullTime
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.Locale,
		&p.IsActive,
		&roles,
		&lastLogin,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, err
	}
	p.PlatformRoles = roles
	if lastLogin.Valid {
		t := lastLogin.Time
		p.LastLoginAt = &t
	}
	return p, nil
}

// rolesScanner decodes a Postgres text[] literal like {platform_admin,support}.
// Role names are plain identifiers, so the quoted-element cases of the array
// syntax are not handled.
type rolesScanner []string

func (r *rolesScanner) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return errors.New("identity: unsupported platform_roles type")
	}
	raw = trimBraces(raw)
	if raw == "" {
		*r = nil
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if elem := raw[start:i]; elem != "" {
				out = append(out, elem)
			}
			start = i + 1
		}
	}
	*r = out
	return nil
}

func trimBraces(s string) string {
	if len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' {
		return s[1 : len(s)-1]
	}
	return s
}
