package main

import (
	"muhasebe-platform/internal/httpapi"
	"muhasebe-platform/internal/rbac"
	"muhasebe-platform/internal/tenant"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal
// modules.
//
// Every route under the authorized groups runs the full pipeline; RBAC gates
// are added per route because different routes require different scopes.
func registerRoutes(r *gin.Engine, authzMW gin.HandlerFunc, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	// AUTH routes: token lifecycle. Deliberately not behind the pipeline: a
	// user without a tenant must still be able to log in and out.
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/impersonation/stop", h.StopImpersonation)
	}

	// Authorized routes addressed by header/query/token-claim tenant.
	authorized := v1.Group("")
	authorized.Use(authzMW)
	{
		authorized.GET("/me", h.Me)
		authorized.GET("/memberships", h.ListMyMemberships)

		invoices := authorized.Group("/invoices")
		{
			invoices.GET("", rbac.RequirePermission(rbac.PermInvoicesRead), h.ListInvoices)
			invoices.POST("", rbac.RequirePermission(rbac.PermInvoicesManage), h.CreateInvoice)
		}

		// Platform-admin surface. Membership in the addressed tenant is still
		// required (the pipeline ran); the extra gate is the platform role.
		admin := authorized.Group("/admin")
		admin.Use(rbac.RequirePlatformRole(rbac.PlatformAdmin))
		{
			admin.POST("/impersonate", h.StartImpersonation)
		}
	}

	// The same resources addressed by path tenant, the highest-priority
	// source. A multi-tenant user can hit any tenant they belong to here
	// without re-authenticating.
	tenants := v1.Group("/tenants/:tenantId")
	tenants.Use(authzMW)
	{
		tenants.GET("/me", h.Me)

		invoices := tenants.Group("/invoices")
		{
			invoices.GET("", rbac.RequirePermission(rbac.PermInvoicesRead), h.ListInvoices)
			invoices.POST("", rbac.RequirePermission(rbac.PermInvoicesManage), h.CreateInvoice)
		}

		members := tenants.Group("/members")
		{
			members.GET("", rbac.RequirePermission(rbac.PermMembersRead), h.ListMyMemberships)
		}

		settings := tenants.Group("/settings")
		settings.Use(rbac.RequireRole(tenant.RoleOwner))
		{
			settings.GET("", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})
		}
	}
}
