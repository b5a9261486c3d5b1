package middleware

import (
	"context"
	"net"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/session"
)

// Sessions resolves the request's session from the identity cookie, touches
// it, and flushes it once next returns (or panics). A freshly minted id is
// issued as a cookie before next runs, so handlers may write the response
// straight away.
//
// Flush errors are already logged by the Engine; they never change the
// response.
func Sessions(engine *goSession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}

			value, _ := cookie.Read(r, engine.CookieOptions())
			ip := clientIP(r.RemoteAddr)
			ctx := goSession.WithClientIP(r.Context(), ip)

			res, err := engine.Resolve(ctx, value)
			if err != nil {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			s := res.Session
			recordSessionID(ctx, s.ID())

			if res.NewCookie {
				if err := engine.IssueCookie(w, s.ID()); err != nil {
					http.Error(w, "session unavailable", http.StatusInternalServerError)
					return
				}
			}
			engine.Touch(s, ip)

			defer func() {
				_ = engine.Flush(ctx, s)
			}()

			next.ServeHTTP(w, r.WithContext(goSession.WithSession(ctx, s)))
		})
	}
}

// FromContext returns the session attached by [Sessions].
func FromContext(ctx context.Context) (*session.Session, bool) {
	return goSession.SessionFromContext(ctx)
}

// HandlerFunc is a handler that receives the request's session directly.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, s *session.Session)

// Handle wraps fn with [Sessions].
func Handle(engine *goSession.Engine, fn HandlerFunc) http.Handler {
	return Sessions(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		fn(w, r, s)
	}))
}

// clientIP strips the port from a RemoteAddr. Values that do not parse are
// returned unchanged.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
