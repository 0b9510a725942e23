package authz

import (
	"context"
	"errors"
	"strings"
	"time"

	"muhasebe-platform/internal/auth"
	"muhasebe-platform/internal/identity"
	"muhasebe-platform/internal/rls"
	"muhasebe-platform/internal/session"
	"muhasebe-platform/internal/tenant"
	"muhasebe-platform/pkg/logger"
)

// Collaborator contracts, constructor-injected so every stage is testable
// with fakes and no framework bootstrapping.

type TokenVerifier interface {
	Verify(tokenString string, expected auth.TokenType, now time.Time) (auth.Claims, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type LockoutReader interface {
	Status(ctx context.Context, userID string) (session.LockoutStatus, error)
}

type PrincipalLoader interface {
	FindByID(ctx context.Context, id string) (identity.Principal, error)
}

type MembershipFinder interface {
	Find(ctx context.Context, userID, tenantID string) (tenant.Membership, error)
}

// TenantBinding is one request's database-session tenant binding.
type TenantBinding interface {
	BindTenant(ctx context.Context, tenantID string) error
	Release(ctx context.Context) error
}

// LeaseSource acquires a TenantBinding per request.
type LeaseSource interface {
	Acquire(ctx context.Context) (TenantBinding, error)
}

// LeaseSourceFunc adapts a function to LeaseSource.
type LeaseSourceFunc func(ctx context.Context) (TenantBinding, error)

func (f LeaseSourceFunc) Acquire(ctx context.Context) (TenantBinding, error) { return f(ctx) }

// Stages builds the pipeline stages over the injected collaborators.
type Stages struct {
	Tokens      TokenVerifier
	Revocations RevocationChecker
	Principals  PrincipalLoader
	Lockouts    LockoutReader
	Memberships MembershipFinder
	Leases      LeaseSource

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s Stages) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Pipeline assembles the full ordered pipeline. The order is a contract:
// revocation before any principal load, lockout after the principal is
// confirmed active but before tenant resolution (a locked account must not
// learn whether a tenant exists), membership before RLS binding.
func (s Stages) Pipeline() *Pipeline {
	return NewPipeline(
		s.VerifyToken,
		s.CheckRevocation,
		s.LoadPrincipal,
		s.CheckLockout,
		s.ResolveTenant,
		s.VerifyMembership,
		s.BindRLS,
	)
}

const bearerPrefix = "Bearer "

// VerifyToken strips the Bearer prefix (exact case, single space) and
// validates signature and expiry. Verification internals are logged, never
// surfaced to the client.
func (s Stages) VerifyToken(ctx context.Context, ac Context) (Context, error) {
	raw := ac.RawToken
	if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
		return Context{}, Unauthenticated(MsgAuthRequired, nil)
	}
	tok := raw[len(bearerPrefix):]
	if tok == "" || strings.HasPrefix(tok, " ") {
		return Context{}, Unauthenticated(MsgAuthRequired, nil)
	}

	claims, err := s.Tokens.Verify(tok, auth.TokenTypeAccess, s.now())
	if err != nil {
		logger.From(ctx).Info("token rejected", "err", err)
		return Context{}, Unauthenticated(MsgInvalidToken, err)
	}

	ac.Claims = claims
	return ac, nil
}

// CheckRevocation runs after signature verification (no lookups for garbage
// tokens) and before any principal load. A store failure fails closed: an
// unreachable blacklist must not let revoked tokens through.
func (s Stages) CheckRevocation(ctx context.Context, ac Context) (Context, error) {
	revoked, err := s.Revocations.IsRevoked(ctx, ac.Claims.ID)
	if err != nil {
		logger.From(ctx).Error("revocation store lookup failed", "err", err)
		return Context{}, Unauthenticated(MsgAuthRequired, err)
	}
	if revoked {
		return Context{}, Unauthenticated(MsgSessionTerminated, nil)
	}
	return ac, nil
}

// LoadPrincipal loads the user row on every request, never from a session
// cache, so deactivation takes effect on the very next call. For impersonated
// sessions the subject claim is the acted-as user, so the effective principal
// is the impersonated user.
func (s Stages) LoadPrincipal(ctx context.Context, ac Context) (Context, error) {
	p, err := s.Principals.FindByID(ctx, ac.Claims.UserID)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			logger.From(ctx).Error("principal load failed", "err", err, "user_id", ac.Claims.UserID)
		}
		return Context{}, Unauthenticated(MsgUserInactive, err)
	}
	if !p.IsActive {
		return Context{}, Unauthenticated(MsgUserInactive, nil)
	}

	ac.Principal = p
	return ac, nil
}

// CheckLockout is advisory-read-only: counters are incremented by the login
// path, not here. A store failure fails closed.
func (s Stages) CheckLockout(ctx context.Context, ac Context) (Context, error) {
	st, err := s.Lockouts.Status(ctx, ac.Principal.ID)
	if err != nil {
		logger.From(ctx).Error("lockout store lookup failed", "err", err, "user_id", ac.Principal.ID)
		return Context{}, Unauthenticated(MsgAuthRequired, err)
	}
	if st.Locked {
		return Context{}, Unauthenticated(LockedMessage(st.Until), nil)
	}
	return ac, nil
}

// ResolveTenant picks the target tenant from, in strict priority order: path
// param, X-Tenant-Id header, query param, token claim. Explicit request-level
// addressing always overrides the token's home-tenant hint, so a multi-tenant
// user can address any tenant they belong to without re-authenticating.
func (s Stages) ResolveTenant(ctx context.Context, ac Context) (Context, error) {
	for _, candidate := range []string{
		ac.TenantHints.Path,
		ac.TenantHints.Header,
		ac.TenantHints.Query,
		ac.Claims.TenantID,
	} {
		if candidate != "" {
			ac.TenantID = candidate
			return ac, nil
		}
	}
	return Context{}, &NotFoundError{Message: MsgTenantNotFound}
}

// VerifyMembership is the authoritative tenant-scoping gate. Absent and
// non-active memberships produce the same 401 as an unknown tenant id, so
// responses never reveal whether a tenant exists.
func (s Stages) VerifyMembership(ctx context.Context, ac Context) (Context, error) {
	m, err := s.Memberships.Find(ctx, ac.Principal.ID, ac.TenantID)
	if err != nil {
		if !errors.Is(err, tenant.ErrNotFound) {
			logger.From(ctx).Error("membership load failed", "err", err, "user_id", ac.Principal.ID)
		}
		return Context{}, Unauthenticated(MsgTenantForbidden, err)
	}
	if !m.IsActive() {
		return Context{}, Unauthenticated(MsgTenantForbidden, nil)
	}

	ac.Membership = m
	return ac, nil
}

// BindRLS leases a connection and binds the verified tenant id into the
// database session. A malformed tenant id is the one deliberate fail-open in
// the pipeline: membership already gated access at the application layer, so
// a skipped redundancy layer is logged, not turned into an outage. Anything
// else still fails closed.
func (s Stages) BindRLS(ctx context.Context, ac Context) (Context, error) {
	if s.Leases == nil {
		return ac, nil
	}

	binding, err := s.Leases.Acquire(ctx)
	if err != nil {
		logger.From(ctx).Error("db lease acquire failed", "err", err)
		return Context{}, Unauthenticated(MsgAuthRequired, err)
	}

	if err := binding.BindTenant(ctx, ac.TenantID); err != nil {
		if errors.Is(err, rls.ErrMalformedTenantID) {
			logger.From(ctx).Warn("rls binding skipped: malformed tenant id",
				"tenant_id", ac.TenantID, "user_id", ac.Principal.ID)
			ac.Binding = binding
			return ac, nil
		}
		_ = binding.Release(ctx)
		logger.From(ctx).Error("rls binding failed", "err", err)
		return Context{}, Unauthenticated(MsgAuthRequired, err)
	}

	ac.Binding = binding
	return ac, nil
}
