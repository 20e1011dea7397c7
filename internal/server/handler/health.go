package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Check tests one backing dependency.
type Check func(ctx context.Context) error

// checkTimeout bounds each dependency check.
const checkTimeout = 2 * time.Second

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks map[string]Check
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: make(map[string]Check), logger: logger}
}

// WithCheck adds a named dependency check.
func (h *HealthHandler) WithCheck(name string, c Check) *HealthHandler {
	h.checks[name] = c
	return h
}

// HealthCheck runs every dependency check concurrently. It answers 503 when any
// check fails.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
				h.logger.WarnContext(ctx, "handler: health check failed",
					slog.String("dependency", name),
					slog.String("error", err.Error()),
				)
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, h.checks[name])
	}
	wg.Wait()

	code, status := http.StatusOK, "ok"
	for _, s := range results {
		if s != "ok" {
			code, status = http.StatusServiceUnavailable, "degraded"
			break
		}
	}
	writeJSON(w, code, map[string]any{
		"status":       status,
		"dependencies": results,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
