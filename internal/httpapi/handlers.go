package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"muhasebe-platform/internal/auth"
	"muhasebe-platform/internal/authz"
	"muhasebe-platform/internal/identity"
	"muhasebe-platform/internal/invoicing"
	"muhasebe-platform/internal/session"
	"muhasebe-platform/internal/tenant"
	"muhasebe-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

// CredentialVerifier checks a password against the stored hash. Owned by the
// account-management collaborator; only the contract lives here.
type CredentialVerifier interface {
	Verify(ctx context.Context, userID, password string) error
}

// RevocationStore blacklists token ids for their remaining lifetime. Refresh
// reads it back: a rotated refresh token must not be replayable.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// LockoutRecorder is the login path's write view of the lockout store.
type LockoutRecorder interface {
	Status(ctx context.Context, userID string) (session.LockoutStatus, error)
	RecordFailure(ctx context.Context, userID string) (session.LockoutStatus, error)
	Reset(ctx context.Context, userID string) error
}

// AuditSink is the slice of the audit service the handlers use.
type AuditSink interface {
	RecordLoginFailed(ctx context.Context, userID, ip string, locked bool)
	RecordLogout(ctx context.Context, userID, ip string)
}

// InvoiceService is the invoice business collaborator.
type InvoiceService interface {
	ListInvoices(ctx context.Context, tenantID string) ([]invoicing.Invoice, error)
	CreateInvoice(ctx context.Context, tenantID string, draft invoicing.Draft) (invoicing.Invoice, error)
}

type Handlers struct {
	Auth        *auth.Manager
	Users       identity.Store
	Credentials CredentialVerifier
	Lockouts    LockoutRecorder
	Revocations RevocationStore
	Memberships tenant.MembershipStore
	Audit       AuditSink
	Invoices    InvoiceService
}

func errorBody(msg string) authz.Envelope {
	return authz.Envelope{Error: authz.EnvelopeBody{Message: msg}}
}

/* ===================== AUTH ===================== */

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates credentials and issues a token pair. Failed attempts feed
// the lockout counter; the authorization pipeline only ever reads it.
// Responses to bad email and bad password are identical.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("E-posta ve şifre gerekli."))
		return
	}
	ctx := c.Request.Context()

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil || !user.IsActive {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.MsgInvalidCredentials))
		return
	}

	st, err := h.Lockouts.Status(ctx, user.ID)
	if err != nil {
		logger.From(ctx).Error("lockout status failed", "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.MsgAuthRequired))
		return
	}
	if st.Locked {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.LockedMessage(st.Until)))
		return
	}

	if err := h.Credentials.Verify(ctx, user.ID, req.Password); err != nil {
		after, rerr := h.Lockouts.RecordFailure(ctx, user.ID)
		if rerr != nil {
			logger.From(ctx).Error("lockout record failed", "err", rerr)
		}
		if h.Audit != nil {
			h.Audit.RecordLoginFailed(ctx, user.ID, c.ClientIP(), after.Locked)
		}
		if after.Locked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.LockedMessage(after.Until)))
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.MsgInvalidCredentials))
		return
	}

	if err := h.Lockouts.Reset(ctx, user.ID); err != nil {
		logger.From(ctx).Error("lockout reset failed", "err", err)
	}

	now := time.Now()
	if err := h.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.From(ctx).Error("last login update failed", "err", err)
	}

	pair, err := h.Auth.IssuePair(now, user.ID, h.homeTenant(ctx, user.ID), user.PlatformRoles)
	if err != nil {
		logger.From(ctx).Error("token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Giriş yapılamadı."))
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// homeTenant picks a tenant hint for the token: the user's only active
// membership, or empty when there are zero or several. The hint is a default
// for simple callers; per-request addressing always overrides it.
func (h Handlers) homeTenant(ctx context.Context, userID string) string {
	ms, err := h.Memberships.ListForUser(ctx, userID)
	if err != nil {
		return ""
	}
	home := ""
	for _, m := range ms {
		if !m.IsActive() {
			continue
		}
		if home != "" {
			return ""
		}
		home = m.TenantID
	}
	return home
}

// Logout revokes the presented access token so it is rejected on its very
// next use, well before natural expiry. It deliberately does not run the full
// pipeline: a user without any tenant must still be able to end the session.
func (h Handlers) Logout(c *gin.Context) {
	claims, ok := h.verifyBearer(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := h.Revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		logger.From(ctx).Error("token revoke failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Çıkış yapılamadı."))
		return
	}
	if h.Audit != nil {
		h.Audit.RecordLogout(ctx, claims.UserID, c.ClientIP())
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a fresh pair and revokes the used
// refresh token (single use).
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("refresh_token gerekli."))
		return
	}
	ctx := c.Request.Context()

	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.MsgInvalidToken))
		return
	}

	// Single use: a refresh token revoked by an earlier rotation (or logout)
	// must not mint another pair. Store errors fail closed.
	revoked, err := h.Revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		logger.From(ctx).Error("revocation check failed", "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.MsgInvalidToken))
		return
	}
	if revoked {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.MsgInvalidToken))
		return
	}

	user, err := h.Users.FindByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.MsgUserInactive))
		return
	}

	// Revoke before issuing: if the old token cannot be retired, do not hand
	// out a new pair alongside it.
	if err := h.Revocations.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		logger.From(ctx).Error("refresh revoke failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Oturum yenilenemedi."))
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), user.ID, claims.TenantID, user.PlatformRoles)
	if err != nil {
		logger.From(ctx).Error("token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Oturum yenilenemedi."))
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) verifyBearer(c *gin.Context) (auth.Claims, bool) {
	raw := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(raw) <= len(prefix) || raw[:len(prefix)] != prefix {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.MsgAuthRequired))
		return auth.Claims{}, false
	}
	claims, err := h.Auth.Verify(raw[len(prefix):], auth.TokenTypeAccess, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(authz.MsgInvalidToken))
		return auth.Claims{}, false
	}
	return claims, true
}

/* ===================== IMPERSONATION ===================== */

type impersonateRequest struct {
	TargetUserID string `json:"target_user_id"`
}

// StartImpersonation issues an impersonation token in which the calling
// platform admin acts as the target user. RBAC (platform_admin) is enforced
// on the route. Clients show a persistent banner for the returned session and
// end it with StopImpersonation.
func (h Handlers) StartImpersonation(c *gin.Context) {
	ac := authz.MustFromContext(c.Request.Context())

	var req impersonateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TargetUserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("target_user_id gerekli."))
		return
	}
	ctx := c.Request.Context()

	target, err := h.Users.FindByID(ctx, req.TargetUserID)
	if err != nil || !target.IsActive {
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody("Kullanıcı bulunamadı."))
		return
	}

	tok, err := h.Auth.IssueImpersonation(time.Now(), ac.Principal.ID, target.ID, ac.TenantID)
	if err != nil {
		logger.From(ctx).Error("impersonation issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("İşlem gerçekleştirilemedi."))
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}

// StopImpersonation revokes the presented impersonation token.
func (h Handlers) StopImpersonation(c *gin.Context) {
	claims, ok := h.verifyBearer(c)
	if !ok {
		return
	}
	if !claims.IsImpersonating {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("Aktif bir taklit oturumu yok."))
		return
	}
	ctx := c.Request.Context()
	if err := h.Revocations.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		logger.From(ctx).Error("token revoke failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("İşlem gerçekleştirilemedi."))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

/* ===================== CONTEXT & RESOURCES ===================== */

// Me echoes the authorized request context: effective user, tenant,
// membership, impersonation state.
func (h Handlers) Me(c *gin.Context) {
	ac := authz.MustFromContext(c.Request.Context())

	resp := gin.H{
		"user": gin.H{
			"id":        ac.Principal.ID,
			"email":     ac.Principal.Email,
			"full_name": ac.Principal.FullName,
			"locale":    ac.Principal.Locale,
		},
		"tenant_id": ac.TenantID,
		"membership": gin.H{
			"id":     ac.Membership.ID,
			"role":   ac.Membership.Role,
			"status": ac.Membership.Status,
		},
		"platform_roles":   ac.PlatformRoles(),
		"is_impersonating": ac.IsImpersonating(),
	}
	if ac.IsImpersonating() {
		resp["impersonator_id"] = ac.ImpersonatorID()
		resp["impersonated_user_id"] = ac.Principal.ID
	}
	c.JSON(http.StatusOK, resp)
}

// ListInvoices is a representative tenant-scoped resource read. Business
// logic lives in the injected collaborator.
func (h Handlers) ListInvoices(c *gin.Context) {
	ac := authz.MustFromContext(c.Request.Context())
	if h.Invoices == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, errorBody("invoice service not wired"))
		return
	}
	items, err := h.Invoices.ListInvoices(c.Request.Context(), ac.TenantID)
	if err != nil {
		logger.From(c.Request.Context()).Error("invoice list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Faturalar yüklenemedi."))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// CreateInvoice is a representative tenant-scoped write, gated by
// invoices:manage on the route.
func (h Handlers) CreateInvoice(c *gin.Context) {
	ac := authz.MustFromContext(c.Request.Context())
	if h.Invoices == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, errorBody("invoice service not wired"))
		return
	}
	var draft invoicing.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("Geçersiz istek gövdesi."))
		return
	}
	created, err := h.Invoices.CreateInvoice(c.Request.Context(), ac.TenantID, draft)
	switch {
	case errors.Is(err, invoicing.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("Geçersiz fatura bilgisi."))
		return
	case errors.Is(err, invoicing.ErrDuplicateNumber):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody("Bu fatura numarası zaten kullanılıyor."))
		return
	case err != nil:
		logger.From(c.Request.Context()).Error("invoice create failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Fatura oluşturulamadı."))
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListMyMemberships lists the caller's memberships across tenants (tenant
// switcher data source).
func (h Handlers) ListMyMemberships(c *gin.Context) {
	ac := authz.MustFromContext(c.Request.Context())
	ms, err := h.Memberships.ListForUser(c.Request.Context(), ac.Principal.ID)
	if err != nil {
		logger.From(c.Request.Context()).Error("membership list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Üyelikler yüklenemedi."))
		return
	}
	out := make([]gin.H, 0, len(ms))
	for _, m := range ms {
		out = append(out, gin.H{
			"tenant_id": m.TenantID,
			"role":      m.Role,
			"status":    m.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}
