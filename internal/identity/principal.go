package identity

import (
	"context"
	"errors"
	"time"
)

// Principal is the authenticated user as seen by the authorization pipeline.
//
// It is loaded fresh on every request, never cached across requests, so a
// deactivated account is rejected on its very next call rather than at next
// login.
type Principal struct {
	ID            string
	Email         string
	FullName      string
	Locale        string
	IsActive      bool
	PlatformRoles []string
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var ErrNotFound = errors.New("identity: user not found")

// Store is the persistence contract for principals.
// The pipeline only reads; writes (registration, deactivation, last-login
// stamping) belong to account-management collaborators.
type Store interface {
	FindByID(ctx context.Context, id string) (Principal, error)
	FindByEmail(ctx context.Context, email string) (Principal, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
