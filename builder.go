package goSession

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and
// then discarded; Build may be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  session.Store
	codec  cookie.Codec
	logger *slog.Logger
	clock  func() time.Time

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis binds sessions to client. The caller keeps ownership of it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore binds sessions to a custom backend. It takes precedence over
// WithRedis.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithCookieCodec replaces the default HS256 signer.
func (b *Builder) WithCookieCodec(codec cookie.Codec) *Builder {
	b.codec = codec
	return b
}

// WithLogger sets the logger for flush failures and degraded reads.
// Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where lifecycle events go when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source used for touches, cookie signing and
// event timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles the lifecycle counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the flush latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
//
// When neither WithStore nor WithRedis was called, Build dials Config.Redis
// and the Engine closes that client on Close. No network I/O happens here.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.validate(b.codec == nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:  cfg,
		logger:  logger,
		clock:   b.clock,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- STORE --------
	switch {
	case b.store != nil:
		engine.store = b.store
	case b.redis != nil:
		engine.store = session.NewRedisStore(b.redis)
	default:
		if cfg.Redis.Addr == "" {
			return nil, ErrStoreRequired
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		engine.store = session.NewRedisStore(client)
		engine.closers = append(engine.closers, client.Close)
	}

	// -------- COOKIE CODEC --------
	if b.codec != nil {
		engine.codec = b.codec
	} else {
		signer, err := cookie.NewSigner(cookie.SignerConfig{
			Secret: cfg.Cookie.Secret,
			Issuer: cfg.Cookie.Issuer,
			MaxAge: cfg.Cookie.MaxAge,
			Now:    engine.now,
		})
		if err != nil {
			for _, c := range engine.closers {
				_ = c()
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		engine.codec = signer
	}

	engine.sessionCfg = session.Config{
		Prefix:   cfg.Session.RedisPrefix,
		TTL:      cfg.SessionTTL(),
		Observer: engineObserver{engine: engine},
		Now:      engine.now,
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
