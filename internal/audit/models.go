package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - tenant_id is required for tenancy isolation.
// - For impersonated sessions BOTH identities are recorded: the acting
//   (effective) user and the real impersonator. Audit readers must never see
//   only one side of an impersonated action.
type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the effective user: for impersonated sessions, the
	// acted-as user, never the impersonator.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// IsImpersonating and ImpersonatorID capture the real identity behind an
	// impersonated action.
	IsImpersonating bool   `json:"is_impersonating,omitempty" db:"is_impersonating"`
	ImpersonatorID  string `json:"impersonator_id,omitempty" db:"impersonator_id"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Path is the route the event occurred on, when request-bound.
	Path string `json:"path,omitempty" db:"path"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeImpersonatedAccess EventType = "impersonated_access"
	EventTypeLoginFailed        EventType = "login_failed"
	EventTypeLoginLocked        EventType = "login_locked"
	EventTypeLogout             EventType = "logout"
)
