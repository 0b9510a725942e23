package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutStatus is the per-user lockout view consumed by the authorization
// pipeline (read-only) and the login path (which records failures).
type LockoutStatus struct {
	Locked            bool
	Until             *time.Time
	FailedAttempts    int
	RemainingAttempts int
}

// LockoutPolicy controls when failed logins lock an account.
type LockoutPolicy struct {
	MaxFailedLogins int
	LockoutDuration time.Duration
	// CounterWindow is how long a failure streak is remembered.
	CounterWindow time.Duration
}

func (p LockoutPolicy) withDefaults() LockoutPolicy {
	out := p
	if out.MaxFailedLogins <= 0 {
		out.MaxFailedLogins = 5
	}
	if out.LockoutDuration <= 0 {
		out.LockoutDuration = 15 * time.Minute
	}
	if out.CounterWindow <= 0 {
		out.CounterWindow = time.Hour
	}
	return out
}

const (
	lockoutFailPrefix = "lockout:fail:"
	lockoutLockPrefix = "lockout:until:"
)

// recordFailureScript atomically bumps the failure counter and, at the
// threshold, writes the lock key holding the unlock time.
//
// KEYS[1] = failure counter key
// KEYS[2] = lock key
// ARGV[1] = max failed attempts (int)
// ARGV[2] = counter window ms (int)
// ARGV[3] = lockout duration ms (int)
//
// Returns {failures, unlock_unix_ms or 0}.
var recordFailureScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  -- Ensure TTL exists even if key already existed without TTL
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
  end
end

if n >= tonumber(ARGV[1]) then
  local t = redis.call('TIME')
  local unlock = (t[1] * 1000) + math.floor(t[2] / 1000) + tonumber(ARGV[3])
  redis.call('SET', KEYS[2], unlock, 'PX', ARGV[3])
  return {n, unlock}
end
return {n, 0}
`)

// RedisLockouts maintains the failed-login counter and lock state in redis.
// The authorization pipeline reads Status only; RecordFailure and Reset are
// called by the login path.
type RedisLockouts struct {
	rdb    *redis.Client
	policy LockoutPolicy
}

func NewRedisLockouts(rdb *redis.Client, policy LockoutPolicy) *RedisLockouts {
	return &RedisLockouts{rdb: rdb, policy: policy.withDefaults()}
}

func (s *RedisLockouts) Status(ctx context.Context, userID string) (LockoutStatus, error) {
	if userID == "" {
		return LockoutStatus{}, fmt.Errorf("session: user id is required")
	}

	pipe := s.rdb.Pipeline()
	lockCmd := pipe.Get(ctx, lockoutLockPrefix+userID)
	failCmd := pipe.Get(ctx, lockoutFailPrefix+userID)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return LockoutStatus{}, err
	}

	st := LockoutStatus{}
	if raw, err := lockCmd.Result(); err == nil {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			until := time.UnixMilli(ms).UTC()
			st.Locked = true
			st.Until = &until
		} else {
			// Lock key exists but is unreadable; stay locked without a time.
			st.Locked = true
		}
	} else if err != redis.Nil {
		return LockoutStatus{}, err
	}

	if raw, err := failCmd.Result(); err == nil {
		if n, perr := strconv.Atoi(raw); perr == nil {
			st.FailedAttempts = n
		}
	} else if err != redis.Nil {
		return LockoutStatus{}, err
	}

	st.RemainingAttempts = s.policy.MaxFailedLogins - st.FailedAttempts
	if st.RemainingAttempts < 0 {
		st.RemainingAttempts = 0
	}
	return st, nil
}

func (s *RedisLockouts) RecordFailure(ctx context.Context, userID string) (LockoutStatus, error) {
	if userID == "" {
		return LockoutStatus{}, fmt.Errorf("session: user id is required")
	}

	res, err := recordFailureScript.Run(ctx, s.rdb,
		[]string{lockoutFailPrefix + userID, lockoutLockPrefix + userID},
		s.policy.MaxFailedLogins,
		s.policy.CounterWindow.Milliseconds(),
		s.policy.LockoutDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return LockoutStatus{}, err
	}
	if len(res) != 2 {
		return LockoutStatus{}, fmt.Errorf("session: unexpected lockout script result")
	}

	st := LockoutStatus{FailedAttempts: int(res[0])}
	st.RemainingAttempts = s.policy.MaxFailedLogins - st.FailedAttempts
	if st.RemainingAttempts < 0 {
		st.RemainingAttempts = 0
	}
	if res[1] > 0 {
		until := time.UnixMilli(res[1]).UTC()
		st.Locked = true
		st.Until = &until
	}
	return st, nil
}

// Reset clears the failure streak after a successful login.
func (s *RedisLockouts) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("session: user id is required")
	}
	return s.rdb.Del(ctx, lockoutFailPrefix+userID, lockoutLockPrefix+userID).Err()
}

// MemoryLockouts is an in-memory lockout store for tests.
type MemoryLockouts struct {
	mu     sync.Mutex
	policy LockoutPolicy
	fails  map[string]int
	until  map[string]time.Time
	clock  func() time.Time

	// Err, when set, is returned from every call to simulate an unavailable
	// store.
	Err error
}

func NewMemoryLockouts(policy LockoutPolicy) *MemoryLockouts {
	return &MemoryLockouts{
		policy: policy.withDefaults(),
		fails:  map[string]int{},
		until:  map[string]time.Time{},
		clock:  time.Now,
	}
}

// Lock force-locks a user until the given time (test setup helper).
func (s *MemoryLockouts) Lock(userID string, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.until[userID] = until
}

func (s *MemoryLockouts) Status(ctx context.Context, userID string) (LockoutStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return LockoutStatus{}, s.Err
	}
	st := LockoutStatus{FailedAttempts: s.fails[userID]}
	st.RemainingAttempts = s.policy.MaxFailedLogins - st.FailedAttempts
	if st.RemainingAttempts < 0 {
		st.RemainingAttempts = 0
	}
	if until, ok := s.until[userID]; ok && s.clock().Before(until) {
		u := until
		st.Locked = true
		st.Until = &u
	}
	return st, nil
}

func (s *MemoryLockouts) RecordFailure(ctx context.Context, userID string) (LockoutStatus, error) {
	s.mu.Lock()
	if s.Err != nil {
		s.mu.Unlock()
		return LockoutStatus{}, s.Err
	}
	s.fails[userID]++
	if s.fails[userID] >= s.policy.MaxFailedLogins {
		s.until[userID] = s.clock().Add(s.policy.LockoutDuration)
	}
	s.mu.Unlock()
	return s.Status(ctx, userID)
}

func (s *MemoryLockouts) Reset(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.fails, userID)
	delete(s.until, userID)
	return nil
}
