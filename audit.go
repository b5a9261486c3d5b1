package goSession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/session"
)

// AuditEvent is one session lifecycle record delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink consumes lifecycle events. Emit runs on the dispatcher's worker
// goroutine, never on the request path.
type AuditSink = audit.Sink

// NoOpSink drops events.
type NoOpSink = audit.NoOpSink

// NewChannelSink returns a sink that forwards events into a buffered channel.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink that logs each event through logger.
func NewSlogSink(logger *slog.Logger) *audit.SlogSink {
	return audit.NewSlogSink(logger)
}

const (
	auditEventSessionCreated  = "session_created"
	auditEventCookieTampered  = "cookie_tampered"
	auditEventSessionCleared  = "session_cleared"
	auditEventFlushFailed     = "flush_failed"
	auditEventFlushSkipped    = "flush_skipped"
	auditEventDecodeFailure   = "decode_failure"
	auditEventBackendDegraded = "backend_unavailable"
)

// AuditErrorCode is the stable error label carried in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrDecode         AuditErrorCode = "decode_failure"
	auditErrCookieInvalid  AuditErrorCode = "cookie_invalid"
	auditErrCancelled      AuditErrorCode = "request_cancelled"
	auditErrUnsupported    AuditErrorCode = "unsupported_value"
	auditErrInternal       AuditErrorCode = "internal_error"
	auditErrNotInitialized AuditErrorCode = "engine_not_initialized"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, session.ErrBackendUnavailable):
		return auditErrUnavailable
	case errors.Is(err, session.ErrDecodeFailure):
		return auditErrDecode
	case errors.Is(err, session.ErrUnsupportedValueType):
		return auditErrUnsupported
	case errors.Is(err, cookie.ErrCookieInvalid):
		return auditErrCookieInvalid
	case errors.Is(err, ErrFlushSkipped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCancelled
	case errors.Is(err, ErrEngineNotReady):
		return auditErrNotInitialized
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
