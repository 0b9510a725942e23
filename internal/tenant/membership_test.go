package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestMembershipIsActive(t *testing.T) {
	if !(Membership{Status: StatusActive}).IsActive() {
		t.Fatalf("active membership must report active")
	}
	for _, st := range []MembershipStatus{StatusInvited, StatusSuspended, ""} {
		if (Membership{Status: st}).IsActive() {
			t.Fatalf("status %q must not report active", st)
		}
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleAccountant, RoleStaff, RoleReadOnly} {
		if !IsValidRole(r) {
			t.Fatalf("expected %q to be valid", r)
		}
	}
	if IsValidRole(Role("super")) {
		t.Fatalf("unknown role must be invalid")
	}
}

func TestMemoryStore_UniquePerUserTenant(t *testing.T) {
	s := NewMemoryStore()
	s.Put(Membership{ID: "m1", UserID: "u1", TenantID: "t1", Role: RoleStaff, Status: StatusActive})
	// Same (user, tenant) replaces, as the unique constraint implies.
	s.Put(Membership{ID: "m2", UserID: "u1", TenantID: "t1", Role: RoleOwner, Status: StatusActive})

	m, err := s.Find(context.Background(), "u1", "t1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if m.ID != "m2" || m.Role != RoleOwner {
		t.Fatalf("expected replacement row, got %+v", m)
	}

	if _, err := s.Find(context.Background(), "u1", "t2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListForUser(t *testing.T) {
	s := NewMemoryStore(
		Membership{ID: "m1", UserID: "u1", TenantID: "t1"},
		Membership{ID: "m2", UserID: "u1", TenantID: "t2"},
		Membership{ID: "m3", UserID: "u2", TenantID: "t1"},
	)
	ms, err := s.ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("expected 2 memberships, got %d", len(ms))
	}
}
