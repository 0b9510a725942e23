package invoicing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"muhasebe-platform/internal/rls"
	"muhasebe-platform/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrDuplicateNumber = errors.New("duplicate invoice number")
)

// Service provides invoice operations on Postgres.
//
// Connection affinity: when the request context carries a tenant-bound
// connection (set by the authorization middleware), all statements run on
// that connection so the database-side RLS policy sees the tenant binding.
// Without one, queries fall back to the pool and rely on the explicit
// tenant_id predicates alone.
type Service struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

func (s *Service) ListInvoices(ctx context.Context, tenantID string) ([]Invoice, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}

	const q = `
		SELECT id, tenant_id, number, total_minor, currency, status, issued_at, created_at
		FROM invoices
		WHERE tenant_id = $1
		ORDER BY issued_at DESC, number DESC
		LIMIT 200`

	var rows *sql.Rows
	var err error
	if conn := rls.ConnFrom(ctx); conn != nil {
		rows, err = conn.QueryContext(ctx, q, tenantID)
	} else {
		rows, err = s.db.QueryContext(ctx, q, tenantID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.Number, &inv.TotalMinor,
			&inv.Currency, &inv.Status, &inv.IssuedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Service) CreateInvoice(ctx context.Context, tenantID string, draft Draft) (Invoice, error) {
	if err := validateDraft(tenantID, draft); err != nil {
		return Invoice{}, err
	}

	now := s.clock().UTC()
	inv := Invoice{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Number:     draft.Number,
		TotalMinor: draft.TotalMinor,
		Currency:   draft.Currency,
		Status:     StatusIssued,
		IssuedAt:   now,
		CreatedAt:  now,
	}

	work := func(ctx context.Context, tx *sql.Tx) error {
		// Number uniqueness is per tenant; check inside the transaction so two
		// concurrent creates cannot both pass.
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM invoices WHERE tenant_id = $1 AND number = $2)`,
			tenantID, draft.Number).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateNumber
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoices (id, tenant_id, number, total_minor, currency, status, issued_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			inv.ID, inv.TenantID, inv.Number, inv.TotalMinor, inv.Currency, inv.Status, inv.IssuedAt, inv.CreatedAt)
		return err
	}

	var err error
	if conn := rls.ConnFrom(ctx); conn != nil {
		err = utils.WithConnTx(ctx, conn, &sql.TxOptions{}, work)
	} else {
		err = utils.WithTx(ctx, s.db, &sql.TxOptions{}, work)
	}
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func validateDraft(tenantID string, draft Draft) error {
	if tenantID == "" {
		return ErrInvalidArgument
	}
	if draft.Number == "" {
		return ErrInvalidArgument
	}
	if draft.TotalMinor <= 0 {
		return ErrInvalidArgument
	}
	if draft.Currency == "" {
		return ErrInvalidArgument
	}
	return nil
}
