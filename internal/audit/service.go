package audit

import (
	"context"
	"errors"
	"time"

	"muhasebe-platform/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by
//   default.
// - Callers should treat audit logging as best-effort: a failed append is
//   logged, never allowed to block the request it describes.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// RecordImpersonatedAccess records one impersonated request, threading both
// the effective (acted-as) identity and the real impersonator.
func (s *Service) RecordImpersonatedAccess(ctx context.Context, tenantID, actorUserID, impersonatorID, ip, path string) {
	err := s.Append(ctx, Event{
		TenantID:        tenantID,
		Type:            EventTypeImpersonatedAccess,
		ActorUserID:     actorUserID,
		IsImpersonating: true,
		ImpersonatorID:  impersonatorID,
		IPAddress:       ip,
		Path:            path,
	})
	if err != nil {
		logger.From(ctx).Error("audit append failed", "err", err, "type", EventTypeImpersonatedAccess)
	}
}

// RecordLoginFailed records a failed credential check; locked marks the
// attempt that crossed the lockout threshold.
func (s *Service) RecordLoginFailed(ctx context.Context, userID, ip string, locked bool) {
	typ := EventTypeLoginFailed
	if locked {
		typ = EventTypeLoginLocked
	}
	err := s.Append(ctx, Event{
		Type:        typ,
		ActorUserID: userID,
		IPAddress:   ip,
	})
	if err != nil {
		logger.From(ctx).Error("audit append failed", "err", err, "type", typ)
	}
}

// RecordLogout records a session termination (token revocation).
func (s *Service) RecordLogout(ctx context.Context, userID, ip string) {
	err := s.Append(ctx, Event{
		Type:        EventTypeLogout,
		ActorUserID: userID,
		IPAddress:   ip,
	})
	if err != nil {
		logger.From(ctx).Error("audit append failed", "err", err, "type", EventTypeLogout)
	}
}
