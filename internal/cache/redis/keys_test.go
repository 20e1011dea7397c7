package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, "swaprouter:ratelimit:k1", rateLimitKey("k1"))
	assert.Equal(t, "swaprouter:lock:rfq:abc", lockKey("rfq:abc"))
	assert.Equal(t, "swaprouter:quotes:abc", quoteCacheKey("abc"))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("swaprouter:*"))
	assert.False(t, hasPattern("swaprouter:orders"))
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
}
