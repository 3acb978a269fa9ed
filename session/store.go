// Package session implements the Redis-backed session liveness markers.
//
// A marker is the server-side half of an issued token: the token proves who
// the bearer is, the marker proves the session is still alive. Tokens are
// never stored; revocation works by deleting markers, which invalidates
// every otherwise well-formed token at its next validated request.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/mpass/internal/keys"
)

// ErrRedisUnavailable is returned when the marker backend is unreachable.
var ErrRedisUnavailable = errors.New("session redis unavailable")

const scanBatch = 100

// Store manages session markers keyed by (email, session id).
type Store struct {
	redis redis.UniversalClient
}

// NewStore creates a marker [Store] backed by the given Redis client.
func NewStore(redisClient redis.UniversalClient) *Store {
	return &Store{redis: redisClient}
}

// Create registers a marker for the session with the given lifetime.
// The marker's value carries no information; only its presence matters.
func (s *Store) Create(ctx context.Context, email, sessionID string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, keys.Session(email, sessionID), "", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Exists reports whether the session's marker is still live.
func (s *Store) Exists(ctx context.Context, email, sessionID string) (bool, error) {
	n, err := s.redis.Exists(ctx, keys.Session(email, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime of the session's marker.
func (s *Store) TTL(ctx context.Context, email, sessionID string) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, keys.Session(email, sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ttl, nil
}

// DeleteAll removes every marker belonging to the identity by scanning its
// key prefix and deleting the matches in batches. Returns the number of
// markers removed.
func (s *Store) DeleteAll(ctx context.Context, email string) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		batch, next, err := s.redis.Scan(ctx, cursor, keys.SessionPattern(email), scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		if len(batch) > 0 {
			n, err := s.redis.Del(ctx, batch...).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
