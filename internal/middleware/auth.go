package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"server/internal/domain"
	"server/internal/identity"
)

// Authenticator resolves a bearer credential into a caller session.
type Authenticator interface {
	Verify(ctx context.Context, token string) (*identity.Session, error)
}

type contextKey string

const sessionKey contextKey = "session"

// Auth extracts the bearer token, resolves it through the identity service
// and stores the session in the request context. Requests without a valid
// credential never reach the handler.
func Auth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthenticated(w, "missing authorization header")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthenticated(w, "invalid authorization header")
				return
			}
			sess, err := auth.Verify(r.Context(), parts[1])
			if err != nil {
				if errors.Is(err, domain.ErrProviderUnavailable) {
					failJSON(w, http.StatusServiceUnavailable, "identity service unavailable")
					return
				}
				unauthenticated(w, "invalid or expired token")
				return
			}
			ctx := ContextWithSession(r.Context(), sess)
			if h, ok := ctx.Value(sessionLogKey).(*sessionHolder); ok {
				h.sess = sess
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the authenticated session, or nil outside the
// Auth middleware.
func SessionFromContext(ctx context.Context) *identity.Session {
	if s, ok := ctx.Value(sessionKey).(*identity.Session); ok {
		return s
	}
	return nil
}

// ContextWithSession injects a session, used by Auth and by handler tests.
func ContextWithSession(ctx context.Context, sess *identity.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func unauthenticated(w http.ResponseWriter, msg string) {
	failJSON(w, http.StatusUnauthorized, msg)
}

func failJSON(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
