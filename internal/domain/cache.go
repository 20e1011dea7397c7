package domain

import (
	"context"
	"time"
)

// QuoteCache holds the accepted quotes of recent rounds keyed by request.
type QuoteCache interface {
	Get(ctx context.Context, key string) ([]FirmQuote, error)
	Set(ctx context.Context, key string, quotes []FirmQuote, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// Channels published on the signal bus.
const (
	ChannelOrders = "swaprouter:orders"
	ChannelQuotes = "swaprouter:quotes"
	// ChannelPattern matches every channel above.
	ChannelPattern = "swaprouter:*"
	// StreamEvents keeps a bounded durable copy of every published event.
	StreamEvents = "swaprouter:events"
)
