package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"server/internal/identity"
)

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// sessionHolder lets Auth, which runs downstream of the access logger,
// report the resolved caller back to the log line written on the way out.
type sessionHolder struct {
	sess *identity.Session
}

const sessionLogKey contextKey = "session_log"

// Logger emits one structured access-log line per request, carrying the
// request id and, when authenticated, the caller id.
func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			holder := &sessionHolder{}
			r = r.WithContext(context.WithValue(r.Context(), sessionLogKey, holder))
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			evt := l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Dur("duration", time.Since(start))
			if rid := RequestIDFromContext(r.Context()); rid != "" {
				evt = evt.Str("request_id", rid)
			}
			if holder.sess != nil {
				evt = evt.Str("user_id", holder.sess.UserID)
			}
			evt.Msg("request")
		})
	}
}
