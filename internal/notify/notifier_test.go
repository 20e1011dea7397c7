package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventRFQEmpty}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventCompileFailed, "compile", "x"))
	require.NoError(t, n.Notify(context.Background(), EventRFQEmpty, "rfq", "x"))
	assert.Equal(t, []string{"rfq"}, s.titles)
}

func TestNotifierKeepsDeliveringAfterFailure(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), EventRFQEmpty, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, good.titles, 1)
}

func TestSendersPostJSON(t *testing.T) {
	var paths []string
	var bodies []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tg := NewTelegramSender("tok", "chat")
	tg.apiURL = srv.URL
	require.NoError(t, tg.Send(context.Background(), "Title", "body"))
	require.NoError(t, NewDiscordSender(srv.URL+"/hook").Send(context.Background(), "Title", "body"))

	assert.Equal(t, []string{"/bottok/sendMessage", "/hook"}, paths)
	assert.Equal(t, "chat", bodies[0]["chat_id"])
	assert.Equal(t, "*Title*\nbody", bodies[0]["text"])
	assert.Equal(t, "**Title**\nbody", bodies[1]["content"])
}

func TestSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 403")
}
