package srp

import (
	"errors"
	"io"
	"math/big"
)

// Client is the counterpart of Exchange. The server never runs it; it exists
// for the Go client tooling and for exercising the server end to end in
// tests without a foreign implementation.
type Client struct {
	group *Group

	x *big.Int // private key derived from salt+password at registration
	a *big.Int // client secret
	A *big.Int // client public value
	s *big.Int // shared secret, set by ProcessChallenge
	b *big.Int // server public value, set by ProcessChallenge
}

// Verifier computes v = g^x mod N for the given private key.
func (g *Group) Verifier(x *big.Int) *big.Int {
	return new(big.Int).Exp(g.G, x, g.N)
}

// NewClient derives the client keypair for one exchange.
func NewClient(group *Group, x *big.Int, random io.Reader) (*Client, error) {
	a, err := privateValue(group, random)
	if err != nil {
		return nil, err
	}
	return &Client{
		group: group,
		x:     x,
		a:     a,
		A:     new(big.Int).Exp(group.G, a, group.N),
	}, nil
}

// PublicValue returns A.
func (c *Client) PublicValue() *big.Int {
	return new(big.Int).Set(c.A)
}

// ProcessChallenge consumes the server public value B and returns the client
// evidence message M1.
func (c *Client) ProcessChallenge(b *big.Int) (*big.Int, error) {
	if b == nil || new(big.Int).Mod(b, c.group.N).Sign() == 0 {
		return nil, errors.New("srp: invalid server public value")
	}

	u := c.group.scrambler(c.A, b)
	k := c.group.multiplier()

	// S = (B - k*g^x)^(a + u*x) mod N
	gx := new(big.Int).Exp(c.group.G, c.x, c.group.N)
	kgx := new(big.Int).Mul(k, gx)
	base := new(big.Int).Sub(b, kgx)
	base.Mod(base, c.group.N)

	exp := new(big.Int).Mul(u, c.x)
	exp.Add(exp, c.a)

	c.s = new(big.Int).Exp(base, exp, c.group.N)
	c.b = new(big.Int).Set(b)

	return c.group.hashPadded(c.A, b, c.s), nil
}

// VerifyServerEvidence checks M2 against the client's own view of the
// exchange. m1 must be the evidence previously produced by ProcessChallenge.
func (c *Client) VerifyServerEvidence(m1, m2 *big.Int) bool {
	if c.s == nil || m2 == nil {
		return false
	}
	expected := c.group.hashPadded(c.A, m1, c.s)
	return expected.Cmp(m2) == 0
}
