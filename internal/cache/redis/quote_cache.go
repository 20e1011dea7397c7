package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// QuoteCache implements domain.QuoteCache. Each entry is the JSON encoding of
// one round's accepted quotes.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteCacheKey(key string) string {
	return keyPrefix + "quotes:" + key
}

// Get returns the cached quotes for key, or domain.ErrNotFound on a miss.
// An empty round is a valid cached value.
func (qc *QuoteCache) Get(ctx context.Context, key string) ([]domain.FirmQuote, error) {
	data, err := qc.rdb.Get(ctx, quoteCacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get quotes %s: %w", key, err)
	}
	var quotes []domain.FirmQuote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, fmt.Errorf("redis: decode quotes %s: %w", key, err)
	}
	return quotes, nil
}

// Set stores quotes under key for ttl.
func (qc *QuoteCache) Set(ctx context.Context, key string, quotes []domain.FirmQuote, ttl time.Duration) error {
	if quotes == nil {
		quotes = []domain.FirmQuote{}
	}
	data, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("redis: encode quotes %s: %w", key, err)
	}
	if err := qc.rdb.Set(ctx, quoteCacheKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set quotes %s: %w", key, err)
	}
	return nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
