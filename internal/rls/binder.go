// Package rls binds the validated tenant id into the database session so
// Postgres row-level-security policies filter every subsequent query by
// tenant. RLS is defense in depth behind the application-layer membership
// check, not the primary gate; see Binder.BindTenant for the consequences.
package rls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

// tenantIDPattern is the hard precondition for session binding. The SET
// statement cannot take bind parameters, so the tenant id is interpolated
// into SQL text; anything that does not match this exact UUID shape must
// never reach statement construction.
var tenantIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidTenantID reports whether id is safe to interpolate into the session
// binding statement.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// ErrMalformedTenantID is reported (and logged) when binding is skipped.
// Callers must NOT fail the request on it: membership was already verified
// at the application layer, and a skipped redundancy layer must not become
// an outage.
var ErrMalformedTenantID = errors.New("rls: tenant id is not a well-formed uuid")

// Binder leases database connections and scopes the tenant binding to one
// lease. Binding on one connection and querying on another would silently
// defeat tenant isolation, so handlers must run their queries on the leased
// connection (see ConnFrom).
type Binder struct {
	db *sql.DB
}

func NewBinder(db *sql.DB) *Binder {
	return &Binder{db: db}
}

// Lease is a single request's database connection with tenant context bound.
type Lease struct {
	conn  *sql.Conn
	bound bool
}

// Acquire leases one connection from the pool for the lifetime of a request.
// The caller must Release it when the request finishes.
func (b *Binder) Acquire(ctx context.Context) (*Lease, error) {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Lease{conn: conn}, nil
}

// BindTenant sets the tenant id on the leased session. A malformed id returns
// ErrMalformedTenantID without touching the database: the request proceeds
// unbound, RLS stays inactive for it, and the membership gate remains the
// enforcing layer.
func (l *Lease) BindTenant(ctx context.Context, tenantID string) error {
	if !ValidTenantID(tenantID) {
		return ErrMalformedTenantID
	}
	// Safe to interpolate: tenantID matched the strict UUID pattern above.
	stmt := fmt.Sprintf("SET app.current_tenant_id = '%s'", tenantID)
	if _, err := l.conn.ExecContext(ctx, stmt); err != nil {
		return err
	}
	l.bound = true
	return nil
}

// Conn exposes the leased connection for the request's queries.
func (l *Lease) Conn() *sql.Conn { return l.conn }

// Release resets the tenant binding and returns the connection to the pool.
// The reset must happen before return so a reused connection can never leak
// the previous request's tenant context.
func (l *Lease) Release(ctx context.Context) error {
	var resetErr error
	if l.bound {
		_, resetErr = l.conn.ExecContext(ctx, "RESET app.current_tenant_id")
		l.bound = false
	}
	closeErr := l.conn.Close()
	if resetErr != nil {
		return resetErr
	}
	return closeErr
}

type leaseKey struct{}

// WithLease stores the request's lease on the context so handlers query the
// same connection the binding was applied to.
func WithLease(ctx context.Context, l *Lease) context.Context {
	return context.WithValue(ctx, leaseKey{}, l)
}

// ConnFrom returns the tenant-bound connection for the current request, or
// nil when the request has no lease (e.g. public routes).
func ConnFrom(ctx context.Context) *sql.Conn {
	if l, ok := ctx.Value(leaseKey{}).(*Lease); ok && l != nil {
		return l.conn
	}
	return nil
}
