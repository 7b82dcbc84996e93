package posauth

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BDuong31/posauth/events"
	internalaudit "github.com/BDuong31/posauth/internal/audit"
	"github.com/BDuong31/posauth/otp"
	"github.com/BDuong31/posauth/password"
	"github.com/BDuong31/posauth/revoke"
	"github.com/BDuong31/posauth/store"
	"github.com/BDuong31/posauth/token"
)

// Builder assembles a Service. Configure it during initialization, call
// Build once, and treat the result as immutable.
type Builder struct {
	config Config
	redis  *redis.Client
	ttl    store.TTL

	users     UserRepository
	publisher events.Publisher
	auditSink AuditSink
	log       *zap.Logger

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Zero-value sections are NOT
// refilled with defaults; start from New() and override fields instead when
// partial configuration is wanted.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecret sets the token signing key.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Token.Secret = cloneBytes(secret)
	return b
}

// WithRedis sets the Redis client backing the TTL store.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithTTLStore overrides the TTL store directly, bypassing Redis. Intended
// for tests and alternative backends.
func (b *Builder) WithTTLStore(s store.TTL) *Builder {
	b.ttl = s
	return b
}

// WithUserRepository sets the credential store collaborator. Required.
func (b *Builder) WithUserRepository(users UserRepository) *Builder {
	b.users = users
	return b
}

// WithPublisher sets the domain-event publisher. Nil keeps events disabled.
func (b *Builder) WithPublisher(p events.Publisher) *Builder {
	b.publisher = p
	return b
}

// WithAuditSink sets the audit sink and enables the audit trail.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithLogger sets the structured logger. Nil gets zap.NewNop.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration, wires the collaborators, and returns a
// ready Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user repository required")
	}

	ttl := b.ttl
	if ttl == nil {
		if b.redis == nil {
			return nil, errors.New("redis client required")
		}
		ttl = store.NewRedis(b.redis)
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	tokens, err := token.NewProvider(cfg.tokenConfig())
	if err != nil {
		return nil, err
	}
	codes, err := otp.NewManager(ttl, cfg.otpConfig())
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}

	svc := &Service{
		config: cfg,
		users:  b.users,
		store:  ttl,
		tokens: tokens,
		otp:    codes,
		ledger: revoke.NewLedger(ttl),
		hasher: hasher,
		events: events.NewDispatcher(cfg.eventsConfig(), b.publisher, log),
		audit:  internalaudit.NewDispatcher(cfg.auditConfig(), b.auditSink),
		log:    log,
	}

	b.built = true

	return svc, nil
}
