// Package service coordinates the order compiler and the quote requestor with
// persistence, caching, events and alerts. Every infrastructure dependency is
// optional so the services also run in local-only mode.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// Notifier raises operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Event is the envelope published on the signal bus and pushed to websocket
// clients.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// publish sends evt on channel and appends it to the durable event stream.
// Failures are logged; events are best effort.
func publish(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel string, evt Event) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.WarnContext(ctx, "service: marshal event failed",
			slog.String("event", evt.Type),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "service: publish event failed",
			slog.String("event", evt.Type),
			slog.String("error", err.Error()),
		)
	}
	if err := bus.StreamAppend(ctx, domain.StreamEvents, payload); err != nil {
		logger.WarnContext(ctx, "service: stream append failed",
			slog.String("event", evt.Type),
			slog.String("error", err.Error()),
		)
	}
}
