package tenant

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory membership store for tests and early development.
// It enforces the (user_id, tenant_id) uniqueness the real table guarantees.
type MemoryStore struct {
	mu          sync.Mutex
	memberships map[string]Membership // key: user_id|tenant_id
}

func NewMemoryStore(ms ...Membership) *MemoryStore {
	s := &MemoryStore{memberships: map[string]Membership{}}
	for _, m := range ms {
		s.memberships[memKey(m.UserID, m.TenantID)] = m
	}
	return s
}

func memKey(userID, tenantID string) string { return userID + "|" + tenantID }

func (s *MemoryStore) Put(m Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[memKey(m.UserID, m.TenantID)] = m
}

func (s *MemoryStore) Find(ctx context.Context, userID, tenantID string) (Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[memKey(userID, tenantID)]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID string) ([]Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Membership
	for _, m := range s.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}
