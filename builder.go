package authkit

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskify-stack/authkit/store"
	"github.com/taskify-stack/authkit/token"
)

// Builder assembles a [Service]. Construction is allocation-only; the first
// store round trip happens inside a Service method, never in Build.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	timeFunc  func() time.Time
	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecret sets the signing secret, keeping the rest of the configuration.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Token.Secret = cloneBytes(secret)
	return b
}

// WithRedis attaches the shared store client. A Service built without one
// issues and verifies stateless access tokens only: refresh bookkeeping,
// blacklisting, and revocation all require a store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithTimeFunc overrides the time source used for all expiry math. Intended
// for tests; defaults to time.Now.
func (b *Builder) WithTimeFunc(now func() time.Time) *Builder {
	b.timeFunc = now
	return b
}

// WithLogger sets the structured logger used for operator-facing warnings
// (store outages on collapse-to-false paths). Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the sink that receives audit events when auditing is
// enabled in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and returns a ready [Service].
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	now := b.timeFunc
	if now == nil {
		now = time.Now
	}

	codec, err := token.NewCodec(token.Config{
		Secret:   b.config.Token.Secret,
		Method:   token.SigningMethod(b.config.Token.SigningMethod),
		TimeFunc: now,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	var kv *store.Store
	if b.redis != nil {
		kv = store.New(b.redis)
	}

	var metrics *Metrics
	if b.config.Metrics.Enabled {
		metrics = newMetrics()
	}

	b.built = true

	return &Service{
		config:  b.config,
		codec:   codec,
		store:   kv,
		now:     now,
		logger:  logger,
		audit:   newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics: metrics,
	}, nil
}
