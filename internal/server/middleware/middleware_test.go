package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	h := Auth([]string{"alpha", " beta "}, "/api/health")(ok)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"missing", "/api/quotes/recent", nil, http.StatusUnauthorized},
		{"wrong", "/api/quotes/recent", map[string]string{"X-API-Key": "gamma"}, http.StatusUnauthorized},
		{"first key", "/api/quotes/recent", map[string]string{"X-API-Key": "alpha"}, http.StatusOK},
		{"second key trimmed", "/api/quotes/recent", map[string]string{"Authorization": "Bearer beta"}, http.StatusOK},
		{"public path", "/api/health", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthDisabledWithoutKeys(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth([]string{"", "  "})(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/quotes/firm", nil)
	req.Header.Set("Origin", "https://APP.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://APP.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "0x-api-key")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"bytes":15`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", seen)
}

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (l *fakeLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RateLimit(limiter, 2, time.Minute, nil, logger)(ok)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, 3, limiter.counts["api:203.0.113.9"])

	other := httptest.NewRequest(http.MethodGet, "/x", nil)
	other.RemoteAddr = "198.51.100.7:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client")

	limiter.err = errors.New("redis down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "limiter errors fail open")
}

func TestRateLimitIgnoresSpoofedForwardingHeaders(t *testing.T) {
	limiter := &fakeLimiter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RateLimit(limiter, 1, time.Minute, nil, logger)(ok)

	codes := make([]int, 0, 3)
	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.9.9.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.8.8.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 429, 429}, codes, "rotating headers does not reset the limit")
	assert.Equal(t, 3, limiter.counts["api:203.0.113.9"])
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	require.NoError(t, err)

	limiter := &fakeLimiter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RateLimit(limiter, 5, time.Minute, trusted, logger)(ok)

	serve := func(remote, xff, xri string) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		if xri != "" {
			req.Header.Set("X-Real-IP", xri)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	// A client-supplied left-most hop is skipped in favour of the right-most
	// untrusted one.
	serve("10.0.0.5:443", "1.1.1.1, 203.0.113.9, 10.0.0.7", "")
	serve("192.0.2.1:443", "", "198.51.100.7")
	serve("10.0.0.5:443", "", "")

	assert.Equal(t, 1, limiter.counts["api:203.0.113.9"])
	assert.Equal(t, 1, limiter.counts["api:198.51.100.7"])
	assert.Equal(t, 1, limiter.counts["api:10.0.0.5"])
	assert.Zero(t, limiter.counts["api:1.1.1.1"])

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
}
