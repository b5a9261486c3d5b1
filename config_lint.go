package goSession

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	// LintInfo marks a choice worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that is risky in production.
	LintWarn
	// LintHigh marks a setting that weakens cookie integrity or loses writes.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one finding from [Config.Lint].
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	matched := r.BySeverity(min)
	if len(matched) == 0 {
		return nil
	}
	parts := make([]string, 0, len(matched))
	for _, w := range matched {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint reports settings that are valid but questionable. It never fails;
// pair it with Validate.
func (c *Config) Lint() LintResult {
	var r LintResult
	add := func(code string, sev LintSeverity, msg string) {
		r = append(r, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if n := len(c.Cookie.Secret); n > 0 && n < 32 {
		add("cookie_secret_short", LintHigh, "HS256 cookie secret is shorter than 256 bits")
	}
	if !c.Cookie.Secure {
		add("cookie_insecure", LintWarn, "identity cookie is sent over plain HTTP")
	}
	if !c.Cookie.HTTPOnly {
		add("cookie_script_readable", LintWarn, "identity cookie is readable from page scripts")
	}
	if c.Cookie.MaxAge == 0 {
		add("cookie_no_expiry", LintInfo, "signed cookie never expires; records still expire by TTL")
	}

	ttl := c.SessionTTL()
	if ttl > 90*24*time.Hour {
		add("ttl_long", LintWarn, "session TTL exceeds 90 days")
	}
	if c.Cookie.MaxAge > 0 && c.Cookie.MaxAge < ttl {
		add("cookie_shorter_than_ttl", LintInfo, "cookie expires before an idle session record would")
	}
	if c.Session.TTL > 0 && c.Session.TTL%time.Second != 0 {
		add("ttl_subsecond", LintInfo, "session TTL is truncated to whole seconds")
	}

	if !c.Lifecycle.FlushOnCancel {
		add("flush_skipped_on_cancel", LintInfo, "writes buffered by cancelled requests are dropped with a warning")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn, "audit emit blocks request paths when the buffer is full")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "lifecycle events are not emitted")
	}

	return r
}
