// Package stores contains the Redis-backed state stores for the login
// subsystem: the in-flight proof exchange, the lockout counter/marker pair,
// and pending email-verification codes.
package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/mpass/internal/keys"
)

const exchangeRecordVersionV1 = 1

var (
	ErrExchangeNotFound    = errors.New("exchange state not found")
	ErrExchangeUnavailable = errors.New("exchange backend unavailable")
)

// ExchangeState is the serialized snapshot of one in-flight proof round.
// A and B are the public values, S the derived shared secret.
type ExchangeState struct {
	A *big.Int
	B *big.Int
	S *big.Int
}

// ExchangeStore keeps at most one in-flight exchange per identity in Redis,
// TTL-bounded so orphaned challenges self-clean. Writes are last-write-wins:
// a new challenge silently replaces any prior one for the same identity.
type ExchangeStore struct {
	redis redis.UniversalClient
}

func NewExchangeStore(redisClient redis.UniversalClient) *ExchangeStore {
	return &ExchangeStore{redis: redisClient}
}

// Save overwrites the identity's exchange state.
func (s *ExchangeStore) Save(ctx context.Context, email string, state *ExchangeState, ttl time.Duration) error {
	encoded, err := encodeExchangeState(state)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, keys.LoginExchange(email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeUnavailable, err)
	}
	return nil
}

// Get fetches the identity's exchange state without consuming it.
func (s *ExchangeStore) Get(ctx context.Context, email string) (*ExchangeState, error) {
	data, err := s.redis.Get(ctx, keys.LoginExchange(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrExchangeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrExchangeUnavailable, err)
	}
	return decodeExchangeState(data)
}

// Delete discards the identity's exchange state. Deleting a missing state is
// a no-op.
func (s *ExchangeStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, keys.LoginExchange(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeUnavailable, err)
	}
	return nil
}

func encodeExchangeState(state *ExchangeState) ([]byte, error) {
	if state == nil || state.A == nil || state.B == nil || state.S == nil {
		return nil, errors.New("incomplete exchange state")
	}

	var buf bytes.Buffer
	buf.WriteByte(exchangeRecordVersionV1)

	for _, v := range []*big.Int{state.A, state.B, state.S} {
		raw := v.Bytes()
		if len(raw) > 65535 {
			return nil, errors.New("exchange value too large")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(raw))); err != nil {
			return nil, err
		}
		buf.Write(raw)
	}

	return buf.Bytes(), nil
}

func decodeExchangeState(data []byte) (*ExchangeState, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != exchangeRecordVersionV1 {
		return nil, errors.New("invalid exchange record version")
	}

	values := make([]*big.Int, 3)
	for i := range values {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		values[i] = new(big.Int).SetBytes(raw)
	}

	return &ExchangeState{A: values[0], B: values[1], S: values[2]}, nil
}
