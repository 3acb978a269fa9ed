package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(Config{SigningKey: []byte("test-signing-key")})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManager_RequiresSigningKey(t *testing.T) {
	if _, err := NewManager(Config{}); !errors.Is(err, ErrMissingSigningKey) {
		t.Fatalf("got %v, want ErrMissingSigningKey", err)
	}
}

func TestManager_CreateParseRoundTrip(t *testing.T) {
	m := newTestManager(t)

	raw, err := m.Create("a@x.com", "sid-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Email != "a@x.com" || claims.SessionID != "sid-1" {
		t.Fatalf("claims = %+v", claims)
	}

	ttl := time.Until(claims.ExpiresAt)
	if ttl < 29*time.Minute || ttl > 30*time.Minute {
		t.Fatalf("expiry window = %v, want ≈30m", ttl)
	}
}

func TestManager_RejectsForeignKey(t *testing.T) {
	m := newTestManager(t)
	other, _ := NewManager(Config{SigningKey: []byte("other-key")})

	raw, _ := other.Create("a@x.com", "sid-1")
	if _, err := m.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestManager_RejectsForeignIssuer(t *testing.T) {
	m := newTestManager(t)
	other, _ := NewManager(Config{SigningKey: []byte("test-signing-key"), Issuer: "someone-else"})

	raw, _ := other.Create("a@x.com", "sid-1")
	if _, err := m.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestManager_RejectsExpiredToken(t *testing.T) {
	m := newTestManager(t)

	issued := time.Now()
	m.now = func() time.Time { return issued }
	raw, _ := m.Create("a@x.com", "sid-1")

	// No leeway: one second past expiry is already invalid.
	m.now = func() time.Time { return issued.Add(30*time.Minute + time.Second) }
	if _, err := m.Parse(raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
}

func TestManager_RejectsAlgNone(t *testing.T) {
	m := newTestManager(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "a@x.com",
		ID:      "sid-1",
		Issuer:  "mPass",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	if _, err := m.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestManager_RejectsGarbage(t *testing.T) {
	m := newTestManager(t)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("Parse(%q): got %v, want ErrTokenInvalid", raw, err)
		}
	}
}
