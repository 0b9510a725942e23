package rbac

import (
	"net/http"

	"muhasebe-platform/internal/authz"
	"muhasebe-platform/internal/tenant"

	"github.com/gin-gonic/gin"
)

// Per-route RBAC gates. Both run AFTER the authorization pipeline: the
// membership role they check is the one the pipeline loaded for the resolved
// tenant. Denials are 403 (known identity, forbidden action), deliberately
// distinct from the pipeline's 401s.

// RequireRole allows the request if the membership role is in the allow-list.
func RequireRole(allowed ...tenant.Role) gin.HandlerFunc {
	allowedSet := make(map[tenant.Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		ac, err := authz.FromContext(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				authz.NewEnvelope(authz.Unauthenticated(authz.MsgAuthRequired, err)))
			return
		}
		if _, ok := allowedSet[ac.Membership.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden,
				authz.NewEnvelope(authz.Forbidden(authz.MsgPermissionDenied)))
			return
		}
		c.Next()
	}
}

// RequirePermission allows the request if the membership role grants the
// permission per the static table.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac, err := authz.FromContext(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				authz.NewEnvelope(authz.Unauthenticated(authz.MsgAuthRequired, err)))
			return
		}
		if !RoleHasPermission(ac.Membership.Role, permission) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				authz.NewEnvelope(authz.Forbidden(authz.MsgPermissionDenied)))
			return
		}
		c.Next()
	}
}

// RequirePlatformRole gates platform-admin surfaces (e.g. starting an
// impersonation) on claims-level roles rather than tenant membership.
func RequirePlatformRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac, err := authz.FromContext(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				authz.NewEnvelope(authz.Unauthenticated(authz.MsgAuthRequired, err)))
			return
		}
		if !ac.Claims.HasPlatformRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				authz.NewEnvelope(authz.Forbidden(authz.MsgPermissionDenied)))
			return
		}
		c.Next()
	}
}
