package goSession

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// Config is the full lifecycle configuration. Start from [DefaultConfig] and
// override what you need.
type Config struct {
	Session   SessionConfig
	Redis     RedisConfig
	Cookie    CookieConfig
	Lifecycle LifecycleConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls record addressing and expiry.
type SessionConfig struct {
	RedisPrefix string
	// TTLDays is the record lifetime after each touch, in days.
	TTLDays int
	// TTL overrides TTLDays when positive. Sub-second precision is dropped
	// because the store only expires in whole seconds.
	TTL time.Duration
}

// RedisConfig is used by Build when no client was passed to the Builder.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the identity cookie and its HS256 signature.
type CookieConfig struct {
	Name     string
	Secret   []byte
	Issuer   string
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// LifecycleConfig controls request-completion flushing.
type LifecycleConfig struct {
	// FlushOnCancel submits buffered writes even when the request context was
	// cancelled, on a detached context bounded by FlushTimeout.
	FlushOnCancel bool
	FlushTimeout  time.Duration
}

// AuditConfig controls the async lifecycle event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration: "session:" prefix,
// 14-day TTL, a "session" cookie. Cookie.Secret must still be set.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: session.DefaultPrefix,
			TTLDays:     14,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Cookie: CookieConfig{
			Name:     "session",
			Path:     "/",
			MaxAge:   30 * 24 * time.Hour,
			Secure:   false,
			HTTPOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		Lifecycle: LifecycleConfig{
			FlushOnCancel: false,
			FlushTimeout:  2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Cookie.Secret = cloneBytes(cfg.Cookie.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// SessionTTL returns the effective record lifetime.
func (c *Config) SessionTTL() time.Duration {
	if c.Session.TTL > 0 {
		return c.Session.TTL
	}
	return time.Duration(c.Session.TTLDays) * 24 * time.Hour
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error. Build wraps it with
// ErrInvalidConfig.
func (c *Config) Validate() error {
	return c.validate(true)
}

// validate skips the secret check when the Builder was given its own codec.
func (c *Config) validate(requireSecret bool) error {
	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.TTL < 0 {
		return errors.New("Session TTL must be >= 0")
	}
	if c.Session.TTL == 0 && c.Session.TTLDays <= 0 {
		return errors.New("Session TTLDays must be > 0 when TTL is unset")
	}
	if c.Session.TTL > 0 && c.Session.TTL < time.Second {
		return errors.New("Session TTL must be at least one second")
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name must not be empty")
	}
	if strings.ContainsAny(c.Cookie.Name, " \t\r\n;,=") {
		return fmt.Errorf("Cookie Name %q contains invalid characters", c.Cookie.Name)
	}
	if requireSecret && len(c.Cookie.Secret) == 0 {
		return errors.New("Cookie Secret is required")
	}
	if c.Cookie.MaxAge < 0 {
		return errors.New("Cookie MaxAge must be >= 0")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Lifecycle
	if c.Lifecycle.FlushOnCancel && c.Lifecycle.FlushTimeout <= 0 {
		return errors.New("Lifecycle FlushTimeout must be > 0 when FlushOnCancel is true")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
