package invoicing

import "time"

// Invoice is a tenant-scoped sales invoice.
//
// Multi-tenant invariant: TenantID is required on every row, and every query
// filters by it even though row-level security already scopes the connection.
// Defense in depth: the WHERE clause and the RLS policy must agree.
type Invoice struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	Number     string    `json:"number" db:"number"`
	TotalMinor int64     `json:"total_minor" db:"total_minor"`
	Currency   string    `json:"currency" db:"currency"`
	Status     Status    `json:"status" db:"status"`
	IssuedAt   time.Time `json:"issued_at" db:"issued_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusDraft  Status = "draft"
	StatusIssued Status = "issued"
	StatusPaid   Status = "paid"
	StatusVoided Status = "voided"
)

// Draft is the client-supplied part of a new invoice. Amounts are minor units
// (kuruş); currency is an ISO 4217 code, TRY for domestic invoices.
type Draft struct {
	Number     string `json:"number"`
	TotalMinor int64  `json:"total_minor"`
	Currency   string `json:"currency"`
}
