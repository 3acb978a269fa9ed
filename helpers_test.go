package mpass

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/mpass/internal/srp"
)

// memIdentityStore is an in-memory IdentityStore for engine tests.
type memIdentityStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*Identity // keyed by email
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{rows: map[string]*Identity{}}
}

func (s *memIdentityStore) FindByEmail(_ context.Context, email string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *memIdentityStore) FindByUsername(_ context.Context, username string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Username != "" && row.Username == username {
			cp := *row
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memIdentityStore) Create(_ context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[identity.Email]; ok {
		return ErrEmailRegistered
	}
	if identity.Username != "" {
		for _, row := range s.rows {
			if row.Username == identity.Username {
				return ErrUsernameTaken
			}
		}
	}
	s.nextID++
	identity.ID = s.nextID
	cp := *identity
	s.rows[identity.Email] = &cp
	return nil
}

func (s *memIdentityStore) Update(_ context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[identity.Email]; !ok {
		return ErrUserNotFound
	}
	cp := *identity
	s.rows[identity.Email] = &cp
	return nil
}

func (s *memIdentityStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

func (s *memIdentityStore) List(_ context.Context) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Identity, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, *row)
	}
	return out, nil
}

// recordingNotifier captures outbound mail. Inspect after engine.Close so
// async deliveries have drained.
type recordingNotifier struct {
	mu          sync.Mutex
	unlockLinks []string
	codes       map[string]string // email -> last code
	failSend    error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: map[string]string{}}
}

func (n *recordingNotifier) SendUnlockLink(_ context.Context, _ string, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failSend != nil {
		return n.failSend
	}
	n.unlockLinks = append(n.unlockLinks, link)
	return nil
}

func (n *recordingNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failSend != nil {
		return n.failSend
	}
	n.codes[email] = code
	return nil
}

func (n *recordingNotifier) lastUnlockLink() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.unlockLinks) == 0 {
		return ""
	}
	return n.unlockLinks[len(n.unlockLinks)-1]
}

func (n *recordingNotifier) codeFor(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

type testEnv struct {
	engine     *Engine
	mr         *miniredis.Miniredis
	identities *memIdentityStore
	notifier   *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	identities := newMemIdentityStore()
	notifier := newRecordingNotifier()

	cfg := DefaultConfig()
	cfg.SigningKey = []byte("test-signing-key")
	cfg.BaseURL = "https://vault.test"

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(identities).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, mr: mr, identities: identities, notifier: notifier}
}

// privateKey derives the client key x = H(salt | H(email ":" password)).
func privateKey(salt []byte, email, password string) *big.Int {
	inner := sha256.Sum256([]byte(email + ":" + password))
	outer := sha256.New()
	outer.Write(salt)
	outer.Write(inner[:])
	return new(big.Int).SetBytes(outer.Sum(nil))
}

// enroll registers an identity directly in the store, the way a client-side
// SRP enrollment would produce it.
func (env *testEnv) enroll(t *testing.T, email, password string) []byte {
	t.Helper()

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		t.Fatalf("salt generation: %v", err)
	}

	group := srp.Group2048()
	v := group.Verifier(privateKey(salt, email, password))

	err := env.identities.Create(context.Background(), &Identity{
		Email:         email,
		EmailVerified: true,
		Salt:          base64.StdEncoding.EncodeToString(salt),
		Verifier:      base64.StdEncoding.EncodeToString([]byte(v.Text(16))),
	})
	if err != nil {
		t.Fatalf("enroll %s: %v", email, err)
	}
	return salt
}

// login drives the full three-step exchange and fails the test on any error.
func (env *testEnv) login(t *testing.T, email, password string) *ProofResult {
	t.Helper()

	res, err := env.tryLogin(t, email, password)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}

// tryLogin drives the exchange and returns the first error encountered.
func (env *testEnv) tryLogin(t *testing.T, email, password string) (*ProofResult, error) {
	t.Helper()
	ctx := context.Background()

	saltB64, err := env.engine.RequestSalt(ctx, email)
	if err != nil {
		return nil, err
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		t.Fatalf("returned salt is not base64: %v", err)
	}

	group := srp.Group2048()
	client, err := srp.NewClient(group, privateKey(salt, email, password), rand.Reader)
	if err != nil {
		t.Fatalf("srp client: %v", err)
	}

	serverPublicHex, err := env.engine.BeginExchange(ctx, email, client.PublicValue().Text(16))
	if err != nil {
		return nil, err
	}
	serverPublic, ok := new(big.Int).SetString(serverPublicHex, 16)
	if !ok {
		t.Fatalf("server public value is not hex: %q", serverPublicHex)
	}

	m1, err := client.ProcessChallenge(serverPublic)
	if err != nil {
		t.Fatalf("process challenge: %v", err)
	}

	res, err := env.engine.CompleteExchange(ctx, email, m1.Text(16))
	if err != nil {
		return nil, err
	}

	m2, ok := new(big.Int).SetString(res.ServerEvidence, 16)
	if !ok || !client.VerifyServerEvidence(m1, m2) {
		t.Fatal("server evidence does not verify on the client side")
	}
	return res, nil
}
