package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocation is the token blacklist. JWTs are stateless, so logout must have
// an effect before natural expiry: a token's jti is stored here until the
// moment the token would have expired anyway, and the pipeline checks the
// store on every request. Store unavailability is surfaced to callers, who
// must fail closed.

const revokedKeyPrefix = "session:revoked:"

type RedisRevocations struct {
	rdb *redis.Client
}

func NewRedisRevocations(rdb *redis.Client) *RedisRevocations {
	return &RedisRevocations{rdb: rdb}
}

// Revoke blacklists a token id. ttl should be the token's remaining lifetime;
// after that the entry is useless and may expire.
func (s *RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return fmt.Errorf("session: jti is required")
	}
	if ttl <= 0 {
		// Token already expired; nothing to revoke.
		return nil
	}
	return s.rdb.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

func (s *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, fmt.Errorf("session: jti is required")
	}
	n, err := s.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevocations is an in-memory revocation store for tests.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   func() time.Time

	// Err, when set, is returned from every lookup to simulate an
	// unavailable store.
	Err error
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: map[string]time.Time{}, clock: time.Now}
}

func (s *MemoryRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.revoked[jti] = s.clock().Add(ttl)
	return nil
}

func (s *MemoryRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	until, ok := s.revoked[jti]
	return ok && s.clock().Before(until), nil
}
