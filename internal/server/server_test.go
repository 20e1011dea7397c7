package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/server/handler"
	"github.com/alanyoungcy/swaprouter/internal/service"
)

type stubQuotes struct{}

func (stubQuotes) RequestFirmQuotes(context.Context, domain.QuoteRequest) (service.QuoteResult, error) {
	return service.QuoteResult{}, nil
}

func (stubQuotes) Recent(context.Context, domain.ListOpts) ([]domain.FirmQuote, error) {
	return nil, nil
}

func (stubQuotes) Round(context.Context, string) (domain.QuoteRound, error) {
	return domain.QuoteRound{}, domain.ErrNotFound
}

func (stubQuotes) Rounds(context.Context) ([]domain.BlobInfo, error) { return nil, nil }

func newTestServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := Handlers{
		Health: handler.NewHealthHandler(logger),
		Status: handler.NewStatusHandler("server", func() []string { return []string{"http://mm"} }, time.Now()),
		Quotes: handler.NewQuoteHandler(stubQuotes{}, handler.QuoteDefaults{}, logger),
	}
	return NewServer(cfg, handlers, nil, nil, logger).Handler()
}

func TestServerRoutesAndAuth(t *testing.T) {
	h := newTestServer(t, Config{Port: 0, APIKeys: []string{"secret"}})

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"health is public", http.MethodGet, "/api/health", "", http.StatusOK},
		{"metrics are public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"quotes need a key", http.MethodGet, "/api/quotes/recent", "", http.StatusUnauthorized},
		{"quotes with key", http.MethodGet, "/api/quotes/recent", "secret", http.StatusOK},
		{"status with key", http.MethodGet, "/api/status", "secret", http.StatusOK},
		{"missing round", http.MethodGet, "/api/rounds/nope", "secret", http.StatusNotFound},
		{"compile not served", http.MethodPost, "/api/orders/compile", "secret", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/rounds", "secret", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestServerPreflightSkipsAuth(t *testing.T) {
	h := newTestServer(t, Config{APIKeys: []string{"secret"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/quotes/firm", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServerMetricsExposeCollectors(t *testing.T) {
	h := newTestServer(t, Config{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
