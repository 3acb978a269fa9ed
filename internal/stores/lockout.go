package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/mpass/internal/keys"
)

var (
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
	ErrUnlockTokenInvalid = errors.New("unlock token invalid")
)

// failScript increments the attempt counter and, when the count reaches the
// threshold, installs the lock marker with the caller-supplied token and
// clears the counter in one atomic server-side step, so concurrent failures
// cannot both observe "below threshold" or double-trigger the lock.
const failScript = `
local n = redis.call("INCR", KEYS[1])
if n >= tonumber(ARGV[1]) then
  redis.call("SET", KEYS[2], ARGV[2])
  redis.call("DEL", KEYS[1])
end
return n
`

// unlockScript deletes the lock marker only when the stored token matches.
const unlockScript = `
local v = redis.call("GET", KEYS[1])
if not v or v ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`

var (
	failLua   = redis.NewScript(failScript)
	unlockLua = redis.NewScript(unlockScript)
)

// LockoutStore tracks consecutive proof failures per identity and owns the
// lock marker that gates new challenges. The attempt counter carries no TTL;
// it is cleared on proof success or when a lock is installed.
type LockoutStore struct {
	redis     redis.UniversalClient
	threshold int
}

func NewLockoutStore(redisClient redis.UniversalClient, threshold int) *LockoutStore {
	return &LockoutStore{redis: redisClient, threshold: threshold}
}

// Threshold returns the configured consecutive-failure limit.
func (s *LockoutStore) Threshold() int {
	return s.threshold
}

// Fail records one proof failure. unlockToken is stored as the lock marker's
// value when this failure reaches the threshold; it is discarded otherwise.
// Returns the attempt count and whether this call installed the lock.
func (s *LockoutStore) Fail(ctx context.Context, email, unlockToken string) (int64, bool, error) {
	attempts, err := failLua.Run(ctx, s.redis,
		[]string{keys.LoginAttempt(email), keys.AccountUnlock(email)},
		s.threshold, unlockToken,
	).Int64()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return attempts, attempts >= int64(s.threshold), nil
}

// Locked reports whether a lock marker exists for the identity.
func (s *LockoutStore) Locked(ctx context.Context, email string) (bool, error) {
	n, err := s.redis.Exists(ctx, keys.AccountUnlock(email)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return n > 0, nil
}

// Unlock removes the lock marker iff the supplied token matches the stored
// one. Any mismatch or absent marker fails with ErrUnlockTokenInvalid and
// leaves the marker untouched.
func (s *LockoutStore) Unlock(ctx context.Context, email, token string) error {
	ok, err := unlockLua.Run(ctx, s.redis, []string{keys.AccountUnlock(email)}, token).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if ok != 1 {
		return ErrUnlockTokenInvalid
	}
	return nil
}

// ClearAttempts deletes the attempt counter. Invoked only on proof success.
func (s *LockoutStore) ClearAttempts(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, keys.LoginAttempt(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count, zero when absent.
func (s *LockoutStore) Attempts(ctx context.Context, email string) (int64, error) {
	n, err := s.redis.Get(ctx, keys.LoginAttempt(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return n, nil
}
