package identity

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("identity: invalid credentials")

// BcryptVerifier checks a password against the bcrypt hash stored on the
// user row. Password changes and hashing policy belong to the
// account-management service; this is the read side only.
type BcryptVerifier struct {
	db *sql.DB
}

func NewBcryptVerifier(db *sql.DB) *BcryptVerifier {
	return &BcryptVerifier{db: db}
}

func (v *BcryptVerifier) Verify(ctx context.Context, userID, password string) error {
	const q = `
SELECT password_hash
FROM users
WHERE id = $1
`
	var hash string
	if err := v.db.QueryRowContext(ctx, q, userID).Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// StaticVerifier verifies against an in-memory password map (tests only).
type StaticVerifier map[string]string

func (v StaticVerifier) Verify(ctx context.Context, userID, password string) error {
	if want, ok := v[userID]; ok && want == password {
		return nil
	}
	return ErrInvalidCredentials
}
