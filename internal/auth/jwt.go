package auth

import (
	"errors"
	"time"

	"muhasebe-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

/* ===================== ISSUE TOKENS ===================== */

func (m *Manager) IssuePair(now time.Time, userID, tenantID string, platformRoles []string) (TokenPair, error) {
	access, err := m.issue(now, Claims{
		UserID:        userID,
		TenantID:      tenantID,
		PlatformRoles: platformRoles,
		TokenType:     TokenTypeAccess,
	}, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	// Refresh tokens DO NOT carry platform roles.
	refresh, err := m.issue(now, Claims{
		UserID:    userID,
		TenantID:  tenantID,
		TokenType: TokenTypeRefresh,
	}, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// IssueImpersonation issues an access token in which impersonatorID acts as
// targetUserID. The subject identity (UserID) is the acted-as user; the real
// identity is retained for audit. No refresh token is issued: impersonated
// sessions end at token expiry or an explicit stop, never by silent renewal.
func (m *Manager) IssueImpersonation(now time.Time, impersonatorID, targetUserID, tenantID string) (string, error) {
	if impersonatorID == "" || targetUserID == "" {
		return "", errors.New("impersonator and target user ids are required")
	}
	if impersonatorID == targetUserID {
		return "", errors.New("cannot impersonate self")
	}
	return m.issue(now, Claims{
		UserID:             targetUserID,
		TenantID:           tenantID,
		TokenType:          TokenTypeAccess,
		IsImpersonating:    true,
		ImpersonatorID:     impersonatorID,
		ImpersonatedUserID: targetUserID,
	}, m.accessTTL)
}

/* ===================== VERIFY TOKEN ===================== */

func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	var claims Claims

	// The parser validates exp/iat too, so it must share the caller's clock;
	// without WithTimeFunc it would check against wall time regardless of now.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	// Build ONE validator
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}

	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	validator := jwt.NewValidator(opts...)
	if err := validator.Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	// Custom claims validation
	if claims.TokenType != expected {
		return Claims{}, errors.New("token_type mismatch")
	}
	if claims.UserID == "" {
		return Claims{}, errors.New("user_id missing")
	}
	if claims.ID == "" {
		// jti is required so revocation has a stable key.
		return Claims{}, errors.New("jti missing")
	}

	// Impersonation claims must be internally consistent.
	if claims.IsImpersonating {
		if claims.ImpersonatorID == "" || claims.ImpersonatedUserID == "" {
			return Claims{}, errors.New("impersonation claims incomplete")
		}
		if claims.ImpersonatedUserID != claims.UserID {
			return Claims{}, errors.New("impersonated user does not match subject")
		}
	}

	return claims, nil
}

/* ===================== INTERNAL ISSUE ===================== */

func (m *Manager) issue(now time.Time, claims Claims, ttl time.Duration) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Audience:  audienceOrNil(m.audience),
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
