package srp

import (
	"crypto/subtle"
	"errors"
	"io"
	"math/big"
)

var (
	// ErrInvalidPublicValue is returned when the client public value reduces
	// to zero mod N. Callers are expected to collapse it into a generic
	// failure so the protocol never acts as a validity oracle.
	ErrInvalidPublicValue = errors.New("srp: invalid client public value")

	// ErrInvalidVerifier is returned when the stored verifier does not
	// describe a usable group element.
	ErrInvalidVerifier = errors.New("srp: invalid verifier")
)

var one = big.NewInt(1)

// Exchange is the server-side state of one proof round. After the challenge
// step only A, B, and S are required to finish the proof, so those three are
// the serialized snapshot.
type Exchange struct {
	group *Group

	A *big.Int // client public value
	B *big.Int // server public value
	S *big.Int // shared secret
}

// NewExchange runs the challenge step: it derives a fresh server secret,
// computes the server public value B from the verifier v, and derives the
// shared secret from the client public value A.
func NewExchange(group *Group, v, a *big.Int, random io.Reader) (*Exchange, error) {
	if v == nil || v.Sign() <= 0 || v.Cmp(group.N) >= 0 {
		return nil, ErrInvalidVerifier
	}
	if a == nil || new(big.Int).Mod(a, group.N).Sign() == 0 {
		return nil, ErrInvalidPublicValue
	}

	b, err := privateValue(group, random)
	if err != nil {
		return nil, err
	}

	// B = (k*v + g^b) mod N
	k := group.multiplier()
	gb := new(big.Int).Exp(group.G, b, group.N)
	kv := new(big.Int).Mul(k, v)
	pubB := kv.Add(kv, gb)
	pubB.Mod(pubB, group.N)

	// S = (A * v^u)^b mod N
	u := group.scrambler(a, pubB)
	vu := new(big.Int).Exp(v, u, group.N)
	base := new(big.Int).Mul(a, vu)
	base.Mod(base, group.N)
	s := base.Exp(base, b, group.N)

	return &Exchange{group: group, A: a, B: pubB, S: s}, nil
}

// Resume rebuilds an exchange from a stored snapshot.
func Resume(group *Group, a, b, s *big.Int) *Exchange {
	return &Exchange{group: group, A: a, B: b, S: s}
}

// VerifyClientEvidence checks the client evidence message M1 against the
// shared secret and, on match, returns the server evidence message M2.
func (e *Exchange) VerifyClientEvidence(m1 *big.Int) (*big.Int, bool) {
	if m1 == nil || m1.Sign() <= 0 {
		return nil, false
	}

	expected := e.group.hashPadded(e.A, e.B, e.S)
	if subtle.ConstantTimeCompare(e.group.pad(expected), e.group.pad(m1)) != 1 {
		return nil, false
	}

	m2 := e.group.hashPadded(e.A, m1, e.S)
	return m2, true
}

// privateValue draws the server secret b from [2^255, N-1].
func privateValue(group *Group, random io.Reader) (*big.Int, error) {
	min := new(big.Int).Lsh(one, 255)
	span := new(big.Int).Sub(group.N, min)

	n, err := randInt(random, span)
	if err != nil {
		return nil, err
	}
	return n.Add(n, min), nil
}

func randInt(random io.Reader, max *big.Int) (*big.Int, error) {
	byteLen := (max.BitLen() + 7) / 8
	buf := make([]byte, byteLen)
	for {
		if _, err := io.ReadFull(random, buf); err != nil {
			return nil, err
		}
		n := new(big.Int).SetBytes(buf)
		if n.Cmp(max) < 0 {
			return n, nil
		}
	}
}
