package tenant

import (
	"context"
	"errors"
	"time"
)

type Role string
type MembershipStatus string

// Membership roles. Keep these stable; they are part of auth/RBAC contracts
// and are stored in the database.
const (
	RoleOwner      Role = "owner"
	RoleAccountant Role = "accountant"
	RoleStaff      Role = "staff"
	RoleReadOnly   Role = "readonly"
)

const (
	StatusActive    MembershipStatus = "active"
	StatusInvited   MembershipStatus = "invited"
	StatusSuspended MembershipStatus = "suspended"
)

// Membership relates a user to a tenant. Unique on (user_id, tenant_id).
// Only an active membership grants access to the tenant.
type Membership struct {
	ID        string
	UserID    string
	TenantID  string
	Role      Role
	Status    MembershipStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m Membership) IsActive() bool { return m.Status == StatusActive }

func IsValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleAccountant, RoleStaff, RoleReadOnly:
		return true
	default:
		return false
	}
}

var ErrNotFound = errors.New("tenant: membership not found")

// MembershipStore is the persistence contract for memberships.
// The pipeline only reads; invitations and suspensions belong to the
// member-management collaborator.
type MembershipStore interface {
	Find(ctx context.Context, userID, tenantID string) (Membership, error)
	ListForUser(ctx context.Context, userID string) ([]Membership, error)
}
