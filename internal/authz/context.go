package authz

import (
	"context"
	"errors"

	"muhasebe-platform/internal/auth"
	"muhasebe-platform/internal/identity"
	"muhasebe-platform/internal/tenant"
)

// TenantHints are the request-level tenant sources, captured before the
// pipeline runs. Priority: Path > Header > Query > token claim. First
// non-empty wins; no merging.
type TenantHints struct {
	Path   string
	Header string
	Query  string
}

// Context is the accumulator threaded through the pipeline. Each stage
// consumes the previous value and returns an enriched copy; nothing mutates a
// context another stage already observed. It is request-scoped and never
// persisted or shared across requests.
type Context struct {
	RawToken    string
	TenantHints TenantHints
	ClientIP    string

	// Set by VerifyToken.
	Claims auth.Claims

	// Set by LoadPrincipal. For impersonated sessions this is the acted-as
	// user, never the impersonator.
	Principal identity.Principal

	// Set by ResolveTenant / VerifyMembership.
	TenantID   string
	Membership tenant.Membership

	// Set by BindRLS. Released by the middleware once the request finishes.
	Binding TenantBinding
}

func (c Context) IsImpersonating() bool { return c.Claims.IsImpersonating }
func (c Context) ImpersonatorID() string {
	return c.Claims.ImpersonatorID
}
func (c Context) PlatformRoles() []string { return c.Claims.PlatformRoles }

type ctxKey struct{}

// WithContext stores the finished authorization context on a request context.
func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext returns the authorization context placed by the pipeline
// middleware. Handlers behind the middleware may rely on it being present.
func FromContext(ctx context.Context) (Context, error) {
	if v, ok := ctx.Value(ctxKey{}).(Context); ok {
		return v, nil
	}
	return Context{}, errors.New("authorization context missing")
}

// MustFromContext is for handlers that are always registered behind the
// pipeline middleware; absence there is a wiring bug.
func MustFromContext(ctx context.Context) Context {
	ac, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return ac
}
