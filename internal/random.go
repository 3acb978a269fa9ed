package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewUnlockToken returns the opaque token embedded in account-unlock links.
// Compact hex form (no dashes) so it survives URL paths untouched.
func NewUnlockToken() string {
	u := uuid.New()
	var b [32]byte
	const hexdigits = "0123456789abcdef"
	for i, v := range u {
		b[i*2] = hexdigits[v>>4]
		b[i*2+1] = hexdigits[v&0x0f]
	}
	return string(b[:])
}

// NewOTP generates a numeric one-time code of the given length using
// crypto/rand. Used for email verification codes.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
