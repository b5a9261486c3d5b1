package goSession

import (
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/cookie"
)

// SecurityReport summarizes the security-relevant parts of the running
// configuration, for startup logs and health endpoints. It never carries
// secret material.
type SecurityReport struct {
	CookieSigning     string
	CookieName        string
	CookieSecure      bool
	CookieHTTPOnly    bool
	CookieSameSite    string
	CookieMaxAge      time.Duration
	SecretLengthBytes int
	SessionTTL        time.Duration
	FlushOnCancel     bool
	AuditEnabled      bool
	MetricsEnabled    bool
	LintHighFindings  int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	signing := "custom"
	if _, ok := e.codec.(*cookie.Signer); ok {
		signing = "hs256"
	}

	return SecurityReport{
		CookieSigning:     signing,
		CookieName:        e.config.Cookie.Name,
		CookieSecure:      e.config.Cookie.Secure,
		CookieHTTPOnly:    e.config.Cookie.HTTPOnly,
		CookieSameSite:    sameSiteName(e.config.Cookie.SameSite),
		CookieMaxAge:      e.config.Cookie.MaxAge,
		SecretLengthBytes: len(e.config.Cookie.Secret),
		SessionTTL:        e.config.SessionTTL(),
		FlushOnCancel:     e.config.Lifecycle.FlushOnCancel,
		AuditEnabled:      e.config.Audit.Enabled,
		MetricsEnabled:    e.config.Metrics.Enabled,
		LintHighFindings:  len(e.config.Lint().BySeverity(LintHigh)),
	}
}

func sameSiteName(mode http.SameSite) string {
	switch mode {
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return "default"
	}
}
