package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.9:4242"
	assert.Equal(t, "10.0.0.9", clientIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientIP(r))
}

func TestAuth(t *testing.T) {
	h := Auth("k3y", "/api/health")(ok)

	for _, tc := range []struct {
		name   string
		path   string
		header [2]string
		want   int
	}{
		{"public path", "/api/health", [2]string{}, http.StatusOK},
		{"missing", "/api/assets", [2]string{}, http.StatusUnauthorized},
		{"wrong", "/api/assets", [2]string{APIKeyHeader, "nope"}, http.StatusUnauthorized},
		{"header", "/api/assets", [2]string{APIKeyHeader, "k3y"}, http.StatusOK},
		{"bearer", "/api/assets", [2]string{"Authorization", "bearer k3y"}, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header[0] != "" {
				r.Header.Set(tc.header[0], tc.header[1])
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	Auth("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/assets", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "empty key disables auth")
}

func TestCORSWildcard(t *testing.T) {
	h := CORS([]string{"*"})(ok)
	r := httptest.NewRequest(http.MethodGet, "/api/assets", nil)
	r.Header.Set("Origin", "https://anything.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "https://anything.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type stubLimiter struct {
	allow bool
	err   error
}

func (s stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return s.allow, s.err
}

func TestRateLimitFailsOpen(t *testing.T) {
	rec := httptest.NewRecorder()
	RateLimit(stubLimiter{err: errors.New("redis down")}, "scan", 1, time.Minute)(ok).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	RateLimit(stubLimiter{allow: false}, "scan", 1, 90*time.Second)(ok).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}
