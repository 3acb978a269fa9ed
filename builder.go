package mpass

import (
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/mpass/internal/srp"
	"github.com/MrEthical07/mpass/internal/stores"
	"github.com/MrEthical07/mpass/jwt"
	"github.com/MrEthical07/mpass/session"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identities IdentityStore
	notifier   Notifier
	log        *slog.Logger

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client for every ephemeral store: exchange state,
// lockout counters and markers, verification codes, session markers.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the durable account store.
func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.identities = store
	return b
}

// WithNotifier sets the mail delivery implementation.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the engine logger. Without one the engine stays silent.
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identities == nil {
		return nil, errors.New("identity store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		SigningKey: b.config.SigningKey,
		Issuer:     b.config.Issuer,
		TTL:        b.config.SessionTTL,
	})
	if err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine := &Engine{
		config:     b.config,
		identities: b.identities,
		notifier:   b.notifier,
		exchanges:  stores.NewExchangeStore(b.redis),
		lockouts:   stores.NewLockoutStore(b.redis, b.config.LockoutThreshold),
		codes:      stores.NewVerificationStore(b.redis),
		sessions:   session.NewStore(b.redis),
		tokens:     tokens,
		group:      srp.Group2048(),
		log:        log,
	}

	b.built = true
	return engine, nil
}
