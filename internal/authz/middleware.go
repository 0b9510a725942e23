package authz

import (
	"context"

	"muhasebe-platform/internal/rls"
	"muhasebe-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	tenantHeader        = "X-Tenant-Id"
	tenantQueryParam    = "tenantId"
	tenantPathParam     = "tenantId"
)

// AuditTrail records pipeline side effects worth an audit row. Best-effort:
// audit failures never block the request.
type AuditTrail interface {
	RecordImpersonatedAccess(ctx context.Context, tenantID, actorUserID, impersonatorID, ip, path string)
}

// Middleware runs the authorization pipeline for every request in the group
// and injects the enriched context for handlers. RBAC checks are per-route
// and live in internal/rbac; they run after this.
type Middleware struct {
	Pipeline *Pipeline
	Allowed  *IPAllowlist
	Audit    AuditTrail
}

func (m Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqCtx := c.Request.Context()

		ac, err := m.Pipeline.Run(reqCtx, Context{
			RawToken: c.GetHeader(authorizationHeader),
			ClientIP: c.ClientIP(),
			TenantHints: TenantHints{
				Path:   c.Param(tenantPathParam),
				Header: c.GetHeader(tenantHeader),
				Query:  c.Query(tenantQueryParam),
			},
		})
		if err != nil {
			c.AbortWithStatusJSON(HTTPStatus(err), NewEnvelope(err))
			return
		}

		if m.Allowed != nil {
			m.Allowed.Observe(reqCtx, ac.ClientIP, ac.Principal.ID)
		}

		if ac.IsImpersonating() {
			logger.From(reqCtx).Info("impersonated request",
				"impersonator_id", ac.ImpersonatorID(),
				"acting_user_id", ac.Principal.ID,
				"tenant_id", ac.TenantID)
			if m.Audit != nil {
				m.Audit.RecordImpersonatedAccess(reqCtx, ac.TenantID, ac.Principal.ID,
					ac.ImpersonatorID(), ac.ClientIP, c.FullPath())
			}
		}

		reqCtx = WithContext(reqCtx, ac)
		if lease, ok := ac.Binding.(*rls.Lease); ok {
			// Handlers must query the same connection the tenant binding was
			// applied to; pool rotation here would defeat isolation.
			reqCtx = rls.WithLease(reqCtx, lease)
		}
		c.Request = c.Request.WithContext(reqCtx)

		if ac.Binding != nil {
			// Deferred so a panicking handler, unwinding to the recovery
			// middleware, still returns the connection. The reset must also run
			// when the client already disconnected, or the next lease of this
			// connection inherits our tenant.
			defer func() {
				releaseCtx := context.WithoutCancel(c.Request.Context())
				if err := ac.Binding.Release(releaseCtx); err != nil {
					logger.From(releaseCtx).Error("db lease release failed", "err", err)
				}
			}()
		}

		c.Next()
	}
}
