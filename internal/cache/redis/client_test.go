package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	opts := ClientConfig{Addr: "cache:6379", DB: 2, PoolSize: 8}.options()
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "swaprouter", opts.ClientName)
	assert.Nil(t, opts.TLSConfig)

	opts = ClientConfig{Addr: "cache:6380", TLSEnabled: true}.options()
	require.NotNil(t, opts.TLSConfig)
}

func TestHealthCheckReportsUnreachableServer(t *testing.T) {
	c := &Client{rdb: redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := c.HealthCheck(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: ping")

	_, err = New(ctx, ClientConfig{Addr: "127.0.0.1:1", MaxRetries: -1})
	assert.Error(t, err)
}
