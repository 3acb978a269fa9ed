package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/mpass/internal/keys"
)

var (
	ErrCodeMismatch            = errors.New("verification code mismatch")
	ErrCodeAlreadySent         = errors.New("verification code already sent")
	ErrVerificationUnavailable = errors.New("verification backend unavailable")
)

// consumeScript compares the pending code and deletes it on match.
const consumeScript = `
local v = redis.call("GET", KEYS[1])
if not v or v ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`

var consumeLua = redis.NewScript(consumeScript)

// VerificationStore holds pending email-verification codes. A live code
// blocks reissue until it expires, which is what enforces the
// once-per-window resend rule.
type VerificationStore struct {
	redis redis.UniversalClient
}

func NewVerificationStore(redisClient redis.UniversalClient) *VerificationStore {
	return &VerificationStore{redis: redisClient}
}

// SaveIfAbsent stores the code only when no live code exists for the
// address. A still-live code fails with ErrCodeAlreadySent and stays in
// place, which is what enforces the once-per-window resend rule.
func (s *VerificationStore) SaveIfAbsent(ctx context.Context, email, code string, ttl time.Duration) error {
	ok, err := s.redis.SetNX(ctx, keys.EmailVerification(email), code, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	if !ok {
		return ErrCodeAlreadySent
	}
	return nil
}

// Save stores the code for the address with the given lifetime, replacing
// any pending one. Used at registration, where the identity row does not
// exist yet and no earlier code can be live legitimately.
func (s *VerificationStore) Save(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, keys.EmailVerification(email), code, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	return nil
}

// Consume verifies the supplied code against the pending one and deletes it
// on match. A mismatch leaves the pending code in place.
func (s *VerificationStore) Consume(ctx context.Context, email, code string) error {
	ok, err := consumeLua.Run(ctx, s.redis, []string{keys.EmailVerification(email)}, code).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	if ok != 1 {
		return ErrCodeMismatch
	}
	return nil
}
