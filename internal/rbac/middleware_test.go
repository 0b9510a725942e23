package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"muhasebe-platform/internal/auth"
	"muhasebe-platform/internal/authz"
	"muhasebe-platform/internal/identity"
	"muhasebe-platform/internal/tenant"

	"github.com/gin-gonic/gin"
)

func seededRouter(ac authz.Context, gates ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := []gin.HandlerFunc{func(c *gin.Context) {
		c.Request = c.Request.WithContext(authz.WithContext(c.Request.Context(), ac))
		c.Next()
	}}
	chain = append(chain, gates...)
	chain = append(chain, func(c *gin.Context) { c.Status(200) })
	r.GET("/x", chain...)
	return r
}

func contextWithRole(role tenant.Role) authz.Context {
	return authz.Context{
		Principal:  identity.Principal{ID: "u1", IsActive: true},
		TenantID:   "t1",
		Membership: tenant.Membership{ID: "m1", UserID: "u1", TenantID: "t1", Role: role, Status: tenant.StatusActive},
	}
}

func get(r *gin.Engine) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequirePermission_AllowsGrantedRole(t *testing.T) {
	r := seededRouter(contextWithRole(tenant.RoleStaff), RequirePermission(PermInvoicesManage))
	if code := get(r); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequirePermission_DeniesWith403(t *testing.T) {
	r := seededRouter(contextWithRole(tenant.RoleReadOnly), RequirePermission(PermInvoicesManage))
	if code := get(r); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireRole_AllowList(t *testing.T) {
	allowed := seededRouter(contextWithRole(tenant.RoleOwner), RequireRole(tenant.RoleOwner, tenant.RoleAccountant))
	if code := get(allowed); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	denied := seededRouter(contextWithRole(tenant.RoleStaff), RequireRole(tenant.RoleOwner))
	if code := get(denied); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestGates_MissingContextIs401(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequirePermission(PermInvoicesRead), func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != 401 {
		t.Fatalf("expected 401 without pipeline context, got %d", w.Code)
	}
}

func TestRequirePlatformRole(t *testing.T) {
	ac := contextWithRole(tenant.RoleStaff)
	ac.Claims = auth.Claims{UserID: "u1", PlatformRoles: []string{PlatformAdmin}}

	r := seededRouter(ac, RequirePlatformRole(PlatformAdmin))
	if code := get(r); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	ac.Claims.PlatformRoles = nil
	r = seededRouter(ac, RequirePlatformRole(PlatformAdmin))
	if code := get(r); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}
