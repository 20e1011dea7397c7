// Package server is the HTTP + WebSocket API for path compilation and
// firm-quote rounds.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/metrics"
	"github.com/alanyoungcy/swaprouter/internal/server/handler"
	"github.com/alanyoungcy/swaprouter/internal/server/middleware"
	"github.com/alanyoungcy/swaprouter/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKeys guard every route but health and metrics. Empty disables
	// authentication.
	APIKeys []string
	// RateLimitPerMinute bounds requests per client IP; 0 disables it.
	RateLimitPerMinute int
	// TrustedProxies are the IPs or CIDR prefixes whose forwarding headers
	// name the client. Empty means the peer address is the client.
	TrustedProxies []string
}

// Handlers aggregates the HTTP handlers the server registers. Compile and
// Quotes may be nil when the mode does not serve them.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Compile *handler.CompileHandler
	Quotes  *handler.QuoteHandler
}

// publicPaths skip authentication.
var publicPaths = []string{"/api/health", "/metrics"}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}

	if c := handlers.Compile; c != nil {
		mux.HandleFunc("POST /api/orders/compile", c.Compile)
		mux.HandleFunc("POST /api/orders/sign", c.SignOrder)
		mux.HandleFunc("GET /api/compilations/{id}", c.GetCompilation)
	}

	if q := handlers.Quotes; q != nil {
		mux.HandleFunc("POST /api/quotes/firm", q.RequestFirm)
		mux.HandleFunc("GET /api/quotes/recent", q.ListRecent)
		mux.HandleFunc("GET /api/rounds", q.ListRounds)
		mux.HandleFunc("GET /api/rounds/{id}", q.GetRound)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// CORS ends up outermost so preflights never reach auth.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKeys, publicPaths...)(h)
	if limiter != nil && cfg.RateLimitPerMinute > 0 {
		trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			logger.Warn("server: ignoring trusted proxies", slog.String("error", err.Error()))
			trusted = nil
		}
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute, trusted, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
