package app

import (
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// RedisAddr empty means an in-process miniredis, for local runs.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CookieSecret empty means a random per-process secret: every restart
	// orphans existing cookies.
	CookieSecret   string
	CookieSecure   bool
	SessionTTLDays int
	FlushOnCancel  bool

	MetricsEnabled bool
	AuditEnabled   bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("SESSIOND_HTTP_ADDR", "0.0.0.0:8888"),
		LogLevel: EnvString("SESSIOND_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("SESSIOND_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SESSIOND_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SESSIOND_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SESSIOND_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("SESSIOND_SHUTDOWN_TIMEOUT", 10*time.Second),

		RedisAddr:     EnvString("REDIS_ADDR", ""),
		RedisPassword: EnvString("REDIS_PASSWORD", ""),
		// DB 0 is the default and EnvInt only accepts positive values.
		RedisDB: EnvInt("REDIS_SESSION_DB", 0),

		CookieSecret:   EnvString("SESSIOND_COOKIE_SECRET", ""),
		CookieSecure:   EnvBool("SESSIOND_COOKIE_SECURE", false),
		SessionTTLDays: EnvInt("SESSIOND_SESSION_TTL_DAYS", 14),
		FlushOnCancel:  EnvBool("SESSIOND_FLUSH_ON_CANCEL", false),

		MetricsEnabled: EnvBool("SESSIOND_METRICS", true),
		AuditEnabled:   EnvBool("SESSIOND_AUDIT", false),
	}
}

// sessionConfig maps the env config onto the engine's configuration.
func (c Config) sessionConfig(secret []byte) goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.Session.TTLDays = c.SessionTTLDays
	cfg.Redis.Addr = c.RedisAddr
	cfg.Redis.Password = c.RedisPassword
	cfg.Redis.DB = c.RedisDB
	cfg.Cookie.Secret = secret
	cfg.Cookie.Secure = c.CookieSecure
	cfg.Lifecycle.FlushOnCancel = c.FlushOnCancel
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	cfg.Audit.Enabled = c.AuditEnabled
	return cfg
}
