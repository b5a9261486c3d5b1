package middleware

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// RequestLogging logs one line per request. Put it outside [Sessions] to
// include the session id that was served.
//
// The wrapped ResponseWriter preserves Hijacker, Flusher, Pusher and
// ReaderFrom so upgrades and streaming keep working.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lrw := &loggingResponseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}
			rec := &sessionRecorder{}

			next.ServeHTTP(lrw, r.WithContext(withSessionRecorder(r.Context(), rec)))

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", lrw.status,
				"bytes", lrw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote", r.RemoteAddr,
			}
			if rec.id != "" {
				attrs = append(attrs, "session_id", rec.id)
			}
			log.Info("http.request", attrs...)
		})
	}
}

type sessionRecorderKey struct{}

// sessionRecorder lets Sessions report the served session id back out to
// RequestLogging, which runs outside it.
type sessionRecorder struct {
	id string
}

func withSessionRecorder(ctx context.Context, rec *sessionRecorder) context.Context {
	return context.WithValue(ctx, sessionRecorderKey{}, rec)
}

func recordSessionID(ctx context.Context, id string) {
	if rec, ok := ctx.Value(sessionRecorderKey{}).(*sessionRecorder); ok {
		rec.id = id
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}

func (w *loggingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *loggingResponseWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func (w *loggingResponseWriter) ReadFrom(r io.Reader) (int64, error) {
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		n, err := rf.ReadFrom(r)
		w.bytes += n
		return n, err
	}
	n, err := io.Copy(w.ResponseWriter, r)
	w.bytes += n
	return n, err
}

func (w *loggingResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
