package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// TenantID is a hint only (the caller's "home" tenant); the tenant a request
// actually targets is resolved per request and validated against memberships.
// Tenant roles are deliberately NOT embedded in tokens: they are loaded from
// the membership table on every request so a role change takes effect
// immediately, not at next login.
type Claims struct {
	jwt.RegisteredClaims

	UserID        string    `json:"user_id"`
	TenantID      string    `json:"tenant_id,omitempty"`
	PlatformRoles []string  `json:"platform_roles,omitempty"`
	TokenType     TokenType `json:"token_type"`

	// Impersonation: set when a platform admin acts as another user.
	// UserID is then the acted-as user; ImpersonatorID is the real identity.
	IsImpersonating    bool   `json:"is_impersonating,omitempty"`
	ImpersonatorID     string `json:"impersonator_id,omitempty"`
	ImpersonatedUserID string `json:"impersonated_user_id,omitempty"`
}

// HasPlatformRole reports whether the token carries the given platform role.
func (c Claims) HasPlatformRole(role string) bool {
	for _, r := range c.PlatformRoles {
		if r == role {
			return true
		}
	}
	return false
}
