package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

type chanBus struct {
	mu   sync.Mutex
	subs map[string]chan []byte
}

func newChanBus() *chanBus {
	return &chanBus{subs: make(map[string]chan []byte)}
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch := b.subs[channel]
	b.mu.Unlock()
	if ch != nil {
		ch <- payload
	}
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 8)
	b.subs[channel] = ch
	return ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) subscribed(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs) == n
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func (h *Hub) firstClient() *client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		return c
	}
	return nil
}

func TestHubBroadcastsByTopic(t *testing.T) {
	bus := newChanBus()
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "Server"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	require.Eventually(t, func() bool { return bus.subscribed(len(topics)) }, time.Second, 10*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	status := readEnvelope(t, conn)
	assert.Equal(t, "status", status["topic"])
	assert.Equal(t, "server", status["event"].(map[string]any)["mode"])
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, domain.ChannelQuotes, []byte(`{"type":"quotes_received","data":{"accepted":2}}`)))
	env := readEnvelope(t, conn)
	assert.Equal(t, "quotes", env["topic"])
	assert.Equal(t, "quotes_received", env["event"].(map[string]any)["type"])

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Topics: []string{"quotes", "bogus"}}))
	require.Eventually(t, func() bool {
		c := hub.firstClient()
		return c != nil && !c.isSubscribed("quotes")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, domain.ChannelQuotes, []byte(`{"type":"quotes_received"}`)))
	require.NoError(t, bus.Publish(ctx, domain.ChannelOrders, []byte(`{"type":"orders_compiled"}`)))
	env = readEnvelope(t, conn)
	assert.Equal(t, "orders", env["topic"], "unsubscribed topics are skipped")
}
