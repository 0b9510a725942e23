package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory principal store for tests and early development.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]Principal
}

func NewMemoryStore(users ...Principal) *MemoryStore {
	s := &MemoryStore{users: map[string]Principal{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *MemoryStore) Put(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[p.ID] = p
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[id]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.users {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return Principal{}, ErrNotFound
}

func (s *MemoryStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	t := at.UTC()
	p.LastLoginAt = &t
	s.users[id] = p
	return nil
}
