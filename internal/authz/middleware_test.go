package authz_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"muhasebe-platform/internal/audit"
	"muhasebe-platform/internal/auth"
	"muhasebe-platform/internal/authz"
	"muhasebe-platform/internal/config"
	"muhasebe-platform/internal/identity"
	"muhasebe-platform/internal/rbac"
	"muhasebe-platform/internal/rls"
	"muhasebe-platform/internal/session"
	"muhasebe-platform/internal/tenant"

	"github.com/gin-gonic/gin"
)

const (
	tenant1 = "11111111-1111-4111-8111-111111111111"
	tenant2 = "22222222-2222-4222-8222-222222222222"
)

// recordingLeases tracks every binding so tests can assert per-request
// isolation and release.
type recordingLeases struct {
	mu       sync.Mutex
	bindings []*recordedBinding
}

type recordedBinding struct {
	mu       sync.Mutex
	boundTo  string
	released bool
}

func (b *recordedBinding) BindTenant(ctx context.Context, tenantID string) error {
	if !rls.ValidTenantID(tenantID) {
		return rls.ErrMalformedTenantID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundTo = tenantID
	return nil
}

func (b *recordedBinding) Release(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	return nil
}

func (l *recordingLeases) Acquire(ctx context.Context) (authz.TenantBinding, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := &recordedBinding{}
	l.bindings = append(l.bindings, b)
	return b, nil
}

type fixture struct {
	manager     *auth.Manager
	users       *identity.MemoryStore
	members     *tenant.MemoryStore
	revocations *session.MemoryRevocations
	lockouts    *session.MemoryLockouts
	leases      *recordingLeases
	auditRepo   *audit.MemoryRepo
	router      *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	f := &fixture{
		manager: manager,
		users: identity.NewMemoryStore(
			identity.Principal{ID: "u1", Email: "u1@ornek.com", FullName: "Ülkü Bir", Locale: "tr", IsActive: true},
			identity.Principal{ID: "u2", Email: "u2@ornek.com", IsActive: true},
			identity.Principal{ID: "pasif", Email: "pasif@ornek.com", IsActive: false},
			identity.Principal{ID: "a1", Email: "a1@ornek.com", IsActive: true, PlatformRoles: []string{rbac.PlatformAdmin}},
		),
		members: tenant.NewMemoryStore(
			tenant.Membership{ID: "m1", UserID: "u1", TenantID: tenant1, Role: tenant.RoleStaff, Status: tenant.StatusActive},
			tenant.Membership{ID: "m2", UserID: "u1", TenantID: tenant2, Role: tenant.RoleReadOnly, Status: tenant.StatusActive},
			tenant.Membership{ID: "m3", UserID: "u2", TenantID: tenant1, Role: tenant.RoleStaff, Status: tenant.StatusSuspended},
			tenant.Membership{ID: "m4", UserID: "pasif", TenantID: tenant1, Role: tenant.RoleStaff, Status: tenant.StatusActive},
		),
		revocations: session.NewMemoryRevocations(),
		lockouts:    session.NewMemoryLockouts(session.LockoutPolicy{}),
		leases:      &recordingLeases{},
		auditRepo:   audit.NewMemoryRepo(),
	}

	stages := authz.Stages{
		Tokens:      manager,
		Revocations: f.revocations,
		Principals:  f.users,
		Lockouts:    f.lockouts,
		Memberships: f.members,
		Leases:      f.leases,
	}
	mw := authz.Middleware{
		Pipeline: stages.Pipeline(),
		Audit:    audit.NewService(f.auditRepo),
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(mw.Handler())
	{
		v1.GET("/invoices", rbac.RequirePermission(rbac.PermInvoicesRead), echoContext)
		v1.POST("/invoices", rbac.RequirePermission(rbac.PermInvoicesManage), echoContext)
	}
	tenants := r.Group("/v1/tenants/:tenantId")
	tenants.Use(mw.Handler())
	{
		tenants.GET("/invoices", rbac.RequirePermission(rbac.PermInvoicesRead), echoContext)
	}
	boom := r.Group("/v1/boom")
	boom.Use(gin.Recovery(), mw.Handler())
	{
		boom.GET("", func(c *gin.Context) { panic("handler blew up") })
	}
	f.router = r
	return f
}

func echoContext(c *gin.Context) {
	ac := authz.MustFromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"user_id":          ac.Principal.ID,
		"tenant_id":        ac.TenantID,
		"role":             ac.Membership.Role,
		"is_impersonating": ac.IsImpersonating(),
		"impersonator_id":  ac.ImpersonatorID(),
	})
}

func (f *fixture) token(t *testing.T, userID, tenantID string) string {
	t.Helper()
	pair, err := f.manager.IssuePair(time.Now(), userID, tenantID, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair.AccessToken
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body decode: %v (%s)", err, w.Body.String())
	}
	return body
}

func TestMiddleware_MissingBearerIs401(t *testing.T) {
	f := newFixture(t)

	for _, header := range []string{"", "Basic dXNlcg==", "bearer abc", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if w := f.do(req); w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestMiddleware_HeaderTenantHappyPath(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "u1", ""))
	req.Header.Set("X-Tenant-Id", tenant1)

	w := f.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["tenant_id"] != tenant1 {
		t.Fatalf("expected tenant %q bound into context, got %v", tenant1, body["tenant_id"])
	}
	if body["role"] != string(tenant.RoleStaff) {
		t.Fatalf("expected staff role, got %v", body["role"])
	}
}

func TestMiddleware_RevokedTokenIs401DespiteValidity(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "u1", tenant1)

	claims, err := f.manager.Verify(tok, auth.TokenTypeAccess, time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	_ = f.revocations.Revoke(context.Background(), claims.ID, time.Until(claims.ExpiresAt.Time))

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := f.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked token, got %d", w.Code)
	}
}

func TestMiddleware_InactiveUserIs401(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "pasif", tenant1))
	if w := f.do(req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for inactive user, got %d", w.Code)
	}
}

func TestMiddleware_TenantSourcePriority(t *testing.T) {
	f := newFixture(t)
	// All four sources carry different values; the path must win.
	f.members.Put(tenant.Membership{ID: "mp", UserID: "u1", TenantID: tenant1, Role: tenant.RoleStaff, Status: tenant.StatusActive})

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/"+tenant1+"/invoices?tenantId="+tenant2, nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "u1", tenant2))
	req.Header.Set("X-Tenant-Id", tenant2)

	w := f.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["tenant_id"] != tenant1 {
		t.Fatalf("path source must win, got %v", body["tenant_id"])
	}
}

func TestMiddleware_SuspendedMembershipBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "u2", ""))
	req.Header.Set("X-Tenant-Id", tenant1)

	w := f.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	want := `{"error":{"message":"Bu kiracıya erişim yetkiniz yok."}}`
	if w.Body.String() != want {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestMiddleware_UnknownTenantSameBodyAsSuspended(t *testing.T) {
	f := newFixture(t)

	suspended := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	suspended.Header.Set("Authorization", "Bearer "+f.token(t, "u2", ""))
	suspended.Header.Set("X-Tenant-Id", tenant1)

	unknown := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	unknown.Header.Set("Authorization", "Bearer "+f.token(t, "u2", ""))
	unknown.Header.Set("X-Tenant-Id", "99999999-9999-4999-8999-999999999999")

	ws, wu := f.do(suspended), f.do(unknown)
	if ws.Code != http.StatusUnauthorized || wu.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", ws.Code, wu.Code)
	}
	if ws.Body.String() != wu.Body.String() {
		t.Fatalf("suspended vs unknown tenant must be indistinguishable: %s vs %s",
			ws.Body.String(), wu.Body.String())
	}
}

func TestMiddleware_NoTenantSourceIs404(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "u1", ""))
	if w := f.do(req); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without any tenant source, got %d", w.Code)
	}
}

func TestMiddleware_PermissionDenialIs403(t *testing.T) {
	f := newFixture(t)

	// u1 is readonly in tenant2, which lacks invoices:manage.
	req := httptest.NewRequest(http.MethodPost, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "u1", ""))
	req.Header.Set("X-Tenant-Id", tenant2)

	w := f.do(req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for readonly manage attempt, got %d", w.Code)
	}
}

func TestMiddleware_MalformedTenantIDStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.members.Put(tenant.Membership{ID: "mx", UserID: "u1", TenantID: "t1", Role: tenant.RoleStaff, Status: tenant.StatusActive})

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "u1", ""))
	req.Header.Set("X-Tenant-Id", "t1")

	w := f.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("membership-valid request must not fail on rls skip, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.leases.bindings) != 1 {
		t.Fatalf("expected one lease, got %d", len(f.leases.bindings))
	}
	if f.leases.bindings[0].boundTo != "" {
		t.Fatalf("malformed tenant id must never reach the binding statement")
	}
}

func TestMiddleware_RepeatedRequestsAreIndependent(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "u1", ""))
		req.Header.Set("X-Tenant-Id", tenant1)
		if w := f.do(req); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	if len(f.leases.bindings) != 2 {
		t.Fatalf("expected a fresh lease per request, got %d", len(f.leases.bindings))
	}
	for i, b := range f.leases.bindings {
		if b.boundTo != tenant1 {
			t.Fatalf("lease %d bound to %q", i, b.boundTo)
		}
		if !b.released {
			t.Fatalf("lease %d not released; tenant context would leak across reuses", i)
		}
	}
}

func TestMiddleware_ReleasesLeaseWhenHandlerPanics(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/boom", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "u1", ""))
	req.Header.Set("X-Tenant-Id", tenant1)

	w := f.do(req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected recovered 500, got %d", w.Code)
	}

	if len(f.leases.bindings) != 1 {
		t.Fatalf("expected one lease, got %d", len(f.leases.bindings))
	}
	if !f.leases.bindings[0].released {
		t.Fatalf("lease not released after handler panic; connection and tenant binding would leak")
	}
}

func TestMiddleware_ImpersonationThreading(t *testing.T) {
	f := newFixture(t)

	tok, err := f.manager.IssueImpersonation(time.Now(), "a1", "u1", "")
	if err != nil {
		t.Fatalf("issue impersonation: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("X-Tenant-Id", tenant1)

	w := f.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["user_id"] != "u1" {
		t.Fatalf("effective principal must be the impersonated user, got %v", body["user_id"])
	}
	if body["is_impersonating"] != true || body["impersonator_id"] != "a1" {
		t.Fatalf("impersonation metadata missing: %v", body)
	}

	events := f.auditRepo.ByType(audit.EventTypeImpersonatedAccess)
	if len(events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(events))
	}
	e := events[0]
	if e.ActorUserID != "u1" || e.ImpersonatorID != "a1" || !e.IsImpersonating {
		t.Fatalf("audit must record both identities: %+v", e)
	}
}

func TestMiddleware_LockedPrincipalIs401(t *testing.T) {
	f := newFixture(t)
	until := time.Now().Add(10 * time.Minute).UTC()
	f.lockouts.Lock("u1", until)

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "u1", ""))
	req.Header.Set("X-Tenant-Id", tenant1)

	w := f.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for locked account, got %d", w.Code)
	}
	var body authz.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Message == authz.MsgAccountLocked {
		t.Fatalf("expected lockout-until in message when set")
	}
}
