package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/session"
)

// CookieState is the outcome of verifying the identity cookie.
type CookieState uint8

const (
	// CookieMissing means the request carried no identity cookie.
	CookieMissing CookieState = iota
	// CookieValid means the cookie verified and named a session id.
	CookieValid
	// CookieTampered means a cookie was present but failed verification.
	CookieTampered
	// CookieExpired means the cookie carried a valid signature but was past
	// its expiry. It is handled like a missing cookie.
	CookieExpired
)

func (s CookieState) String() string {
	switch s {
	case CookieMissing:
		return "missing"
	case CookieValid:
		return "valid"
	case CookieTampered:
		return "tampered"
	case CookieExpired:
		return "expired"
	default:
		return fmt.Sprintf("CookieState(%d)", uint8(s))
	}
}

// Resolution is what [Engine.Resolve] hands back for one request.
type Resolution struct {
	Session *session.Session
	State   CookieState
	// NewCookie is set when a fresh id was minted; the caller must issue it
	// with IssueCookie before the response is written.
	NewCookie bool
}

type pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Engine is the per-request session lifecycle: resolve an id from the
// identity cookie (or mint one), touch, and flush at request completion.
//
// Engine methods are safe for concurrent use. The Sessions it hands out are
// not; each belongs to one request.
type Engine struct {
	config     Config
	store      session.Store
	codec      cookie.Codec
	sessionCfg session.Config
	audit      *audit.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	clock      func() time.Time
	closers    []func() error
}

// Close stops the event dispatcher (draining queued events) and closes any
// Redis client the Builder created itself.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	for _, c := range e.closers {
		if err := c(); err != nil {
			e.logger.Warn("goSession: close failed", "error", err)
		}
	}
	e.closers = nil
}

// AuditDropped returns how many lifecycle events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the lifecycle counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Store returns the backend sessions are bound to.
func (e *Engine) Store() session.Store {
	if e == nil {
		return nil
	}
	return e.store
}

// CookieOptions returns the identity cookie settings derived from Config.Cookie.
func (e *Engine) CookieOptions() cookie.Options {
	if e == nil {
		return cookie.Options{}
	}
	c := e.config.Cookie
	return cookie.Options{
		Name:     c.Name,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   c.MaxAge,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Resolve turns a raw identity cookie value into a Session without touching
// the store. A missing, expired or tampered cookie fails open to a fresh
// empty session under a newly minted id, with NewCookie set. Only a tampered
// cookie is logged as a warning and audited as such.
func (e *Engine) Resolve(ctx context.Context, cookieValue string) (*Resolution, error) {
	if e == nil || e.store == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	state := CookieMissing
	var id string
	if cookieValue != "" {
		decoded, err := e.codec.Decode(cookieValue)
		switch {
		case err == nil:
			state = CookieValid
			id = decoded
		case errors.Is(err, cookie.ErrCookieMissing):
		case errors.Is(err, cookie.ErrCookieExpired):
			state = CookieExpired
			e.metricInc(MetricCookieExpired)
			e.logger.Debug("goSession: identity cookie expired", "error", err)
		default:
			state = CookieTampered
			e.metricInc(MetricCookieTampered)
			e.logger.Warn("goSession: identity cookie failed verification", "error", err)
			e.emitAudit(ctx, auditEventCookieTampered, false, "", err, nil)
		}
	}

	if state == CookieValid {
		e.metricInc(MetricCookieValid)
		return &Resolution{
			Session: session.New(e.store, id, e.sessionCfg),
			State:   CookieValid,
		}, nil
	}
	if state == CookieMissing {
		e.metricInc(MetricCookieMissing)
	}

	s := session.New(e.store, "", e.sessionCfg)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, s.ID(), nil, func() map[string]string {
		return map[string]string{"cookie": state.String()}
	})

	return &Resolution{Session: s, State: state, NewCookie: true}, nil
}

// IssueCookie signs id and sets the identity cookie on w.
func (e *Engine) IssueCookie(w http.ResponseWriter, id string) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}
	value, err := e.codec.Encode(id)
	if err != nil {
		return fmt.Errorf("goSession: sign cookie: %w", err)
	}
	cookie.Set(w, value, e.CookieOptions())
	return nil
}

// Touch records access metadata on s and queues its expiry refresh. Call it
// once per request after Resolve.
func (e *Engine) Touch(s *session.Session, remoteAddr string) {
	if s == nil {
		return
	}
	s.Touch(remoteAddr)
}

// Flush submits the pipeline of s at request completion. A clean session is
// a no-op. Failures are logged and counted, then returned so the caller can
// ignore them; the response must not depend on a flush succeeding.
//
// When ctx is already done, buffered writes are dropped with a warning and
// ErrFlushSkipped, unless Lifecycle.FlushOnCancel is set, in which case they
// are submitted on a detached context bounded by Lifecycle.FlushTimeout.
func (e *Engine) Flush(ctx context.Context, s *session.Session) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if s == nil {
		return nil
	}
	if !s.Dirty() {
		e.metricInc(MetricFlushClean)
		return nil
	}

	if cause := ctx.Err(); cause != nil {
		if !e.config.Lifecycle.FlushOnCancel {
			pending := s.Pending()
			e.metricInc(MetricFlushSkipped)
			e.logger.Warn("goSession: request cancelled, dropping buffered session writes",
				"session_id", s.ID(),
				"pending", pending,
				"error", cause,
			)
			err := fmt.Errorf("%w: %d pending ops: %v", ErrFlushSkipped, pending, cause)
			e.emitAudit(ctx, auditEventFlushSkipped, false, s.ID(), err, func() map[string]string {
				return map[string]string{"pending": fmt.Sprint(pending)}
			})
			return err
		}

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), e.config.Lifecycle.FlushTimeout)
		defer cancel()
	}

	pending := s.Pending()
	start := time.Now()
	err := s.Save(ctx, false)
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricFlushLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricFlushFailure)
		e.logger.Error("goSession: session flush failed",
			"session_id", s.ID(),
			"pending", pending,
			"error", err,
		)
		e.emitAudit(ctx, auditEventFlushFailed, false, s.ID(), err, nil)
		return err
	}

	e.metricInc(MetricFlushSuccess)
	return nil
}

// ClearAndExpireCookie deletes the session record, resets s to empty and
// clean, and instructs the client to drop the identity cookie. The cookie is
// cleared even when the delete fails.
func (e *Engine) ClearAndExpireCookie(ctx context.Context, w http.ResponseWriter, s *session.Session) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if w != nil {
		cookie.Clear(w, e.CookieOptions())
	}
	if s == nil {
		return nil
	}

	if err := s.Clear(ctx); err != nil {
		e.logger.Error("goSession: session clear failed", "session_id", s.ID(), "error", err)
		e.emitAudit(ctx, auditEventSessionCleared, false, s.ID(), err, nil)
		return err
	}

	e.metricInc(MetricSessionCleared)
	e.emitAudit(ctx, auditEventSessionCleared, true, s.ID(), nil, nil)
	return nil
}

// Ping checks backend availability when the store supports it.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	p, ok := e.store.(pinger)
	if !ok {
		return 0, nil
	}
	return p.Ping(ctx)
}
