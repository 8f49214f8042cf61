package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/identity"
)

func TestRateLimitPerUser(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(ContextWithSession(req.Context(), &identity.Session{UserID: userID, Plan: domain.PlanFree}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("a") != http.StatusOK || do("a") != http.StatusOK {
		t.Fatal("first two requests should pass")
	}
	if do("a") != http.StatusTooManyRequests {
		t.Fatal("third request should be limited")
	}
	if do("b") != http.StatusOK {
		t.Fatal("a different user has an independent bucket")
	}
}

func TestRateLimitAnonymousKeyedByIP(t *testing.T) {
	h := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("10.0.0.1:1000") != http.StatusOK {
		t.Fatal("first request should pass")
	}
	if do("10.0.0.1:2000") != http.StatusTooManyRequests {
		t.Fatal("same ip should be limited")
	}
	if do("10.0.0.2:1000") != http.StatusOK {
		t.Fatal("different ip should pass")
	}
}
