// Package srp implements the server side of the SRP-6a password-proof
// protocol over a fixed prime group, with SHA-256 as the digest.
//
// Hashing follows the padded-operand convention: every operand is
// left-padded with zeros to the byte length of N before digesting, i.e.
//
//	k  = H(PAD(N) | PAD(g))
//	u  = H(PAD(A) | PAD(B))
//	M1 = H(PAD(A) | PAD(B)  | PAD(S))
//	M2 = H(PAD(A) | PAD(M1) | PAD(S))
//
// The in-flight exchange is an explicit, serializable value so that the
// challenge and proof steps can run on different server instances with the
// state parked in a shared store in between.
package srp

import (
	"crypto/sha256"
	"math/big"
)

// Group is a fixed SRP prime group.
type Group struct {
	N *big.Int
	G *big.Int

	// byte length of N; every hashed operand is padded to this size
	size int
}

// rfc5054Hex2048 is the 2048-bit safe prime from RFC 5054 appendix A,
// used with generator 2.
const rfc5054Hex2048 = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC319294" +
	"3DB56050A37329CBB4A099ED8193E0757767A13DD52312AB4B03310D" +
	"CD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FB" +
	"D5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF74" +
	"7359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A" +
	"436C6481F1D2B9078717461A5B9D32E688F87748544523B524B0D57D" +
	"5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E73" +
	"03CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
	"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F" +
	"9E4AFF73"

// Group2048 returns the RFC 5054 2048-bit group with generator 2.
func Group2048() *Group {
	n, _ := new(big.Int).SetString(rfc5054Hex2048, 16)
	return &Group{
		N:    n,
		G:    big.NewInt(2),
		size: (n.BitLen() + 7) / 8,
	}
}

// pad left-pads x to the byte length of N.
func (g *Group) pad(x *big.Int) []byte {
	buf := make([]byte, g.size)
	x.FillBytes(buf)
	return buf
}

// hashPadded digests the given operands, each padded to the group size.
func (g *Group) hashPadded(values ...*big.Int) *big.Int {
	h := sha256.New()
	for _, v := range values {
		h.Write(g.pad(v))
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// multiplier computes k = H(PAD(N) | PAD(g)).
func (g *Group) multiplier() *big.Int {
	return g.hashPadded(g.N, g.G)
}

// scrambler computes u = H(PAD(A) | PAD(B)).
func (g *Group) scrambler(a, b *big.Int) *big.Int {
	return g.hashPadded(a, b)
}
