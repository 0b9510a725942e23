package rls

import (
	"context"
	"errors"
	"testing"
)

func TestValidTenantID(t *testing.T) {
	valid := []string{
		"6f1f64ab-5c2e-4b6e-9a51-7f9d7f3b1c22",
		"00000000-0000-0000-0000-000000000000",
		"6F1F64AB-5C2E-4B6E-9A51-7F9D7F3B1C22",
	}
	for _, id := range valid {
		if !ValidTenantID(id) {
			t.Fatalf("expected %q to be valid", id)
		}
	}

	invalid := []string{
		"",
		"t1",
		"6f1f64ab5c2e4b6e9a517f9d7f3b1c22",                      // no dashes
		"6f1f64ab-5c2e-4b6e-9a51-7f9d7f3b1c2",                   // short
		"6f1f64ab-5c2e-4b6e-9a51-7f9d7f3b1c22 ",                 // trailing space
		"{6f1f64ab-5c2e-4b6e-9a51-7f9d7f3b1c22}",                // braced
		"urn:uuid:6f1f64ab-5c2e-4b6e-9a51-7f9d7f3b1c22",         // urn form
		"6f1f64ab-5c2e-4b6e-9a51-7f9d7f3b1c22'; DROP TABLE x;--", // injection
	}
	for _, id := range invalid {
		if ValidTenantID(id) {
			t.Fatalf("expected %q to be invalid", id)
		}
	}
}

func TestBindTenant_MalformedIDNeverTouchesConnection(t *testing.T) {
	// conn is nil: any attempt to construct/execute the binding statement
	// would panic, so this also proves the statement is never built.
	l := &Lease{}
	err := l.BindTenant(context.Background(), "not-a-uuid")
	if !errors.Is(err, ErrMalformedTenantID) {
		t.Fatalf("expected ErrMalformedTenantID, got %v", err)
	}
	if l.bound {
		t.Fatalf("lease must not report bound")
	}
}
