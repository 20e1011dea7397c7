package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type memCompilationStore struct {
	mu   sync.Mutex
	byID map[string]domain.Compilation
}

func newMemCompilationStore() *memCompilationStore {
	return &memCompilationStore{byID: make(map[string]domain.Compilation)}
}

func (m *memCompilationStore) Create(_ context.Context, c domain.Compilation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.byID[c.ID] = c
	return nil
}

func (m *memCompilationStore) GetByID(_ context.Context, id string) (domain.Compilation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.Compilation{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *memCompilationStore) ListRecent(context.Context, domain.ListOpts) ([]domain.Compilation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Compilation, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	return out, nil
}

type memQuoteStore struct {
	mu     sync.Mutex
	rounds map[string][]domain.FirmQuote
}

func newMemQuoteStore() *memQuoteStore {
	return &memQuoteStore{rounds: make(map[string][]domain.FirmQuote)}
}

func (m *memQuoteStore) InsertBatch(_ context.Context, roundID string, quotes []domain.FirmQuote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[roundID] = append(m.rounds[roundID], quotes...)
	return nil
}

func (m *memQuoteStore) GetByHash(_ context.Context, hash string) (domain.FirmQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, qs := range m.rounds {
		for _, q := range qs {
			if q.OrderHash == hash {
				return q, nil
			}
		}
	}
	return domain.FirmQuote{}, domain.ErrNotFound
}

func (m *memQuoteStore) ListRecent(context.Context, domain.ListOpts) ([]domain.FirmQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FirmQuote
	for _, qs := range m.rounds {
		out = append(out, qs...)
	}
	return out, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	stream    [][]byte
}

func newRecordingBus() *recordingBus {
	return &recordingBus{published: make(map[string][][]byte)}
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *recordingBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stream = append(b.stream, payload)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type memQuoteCache struct {
	mu      sync.Mutex
	entries map[string][]domain.FirmQuote
}

func newMemQuoteCache() *memQuoteCache {
	return &memQuoteCache{entries: make(map[string][]domain.FirmQuote)}
}

func (c *memQuoteCache) Get(_ context.Context, key string) ([]domain.FirmQuote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return q, nil
}

func (c *memQuoteCache) Set(_ context.Context, key string, quotes []domain.FirmQuote, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = quotes
	return nil
}

// countingLimiter allows the first n calls per key.
type countingLimiter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = make(map[string]int)
	}
	l.calls[key]++
	return l.calls[key] <= limit, nil
}

// brokenLimiter fails every call, like a limiter whose backend is down.
type brokenLimiter struct{ err error }

func (l brokenLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, l.err
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func (m *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]bool)
	}
	if m.held[key] {
		return nil, domain.ErrLockHeld
	}
	m.held[key] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
	}, nil
}

type memArchiver struct {
	mu     sync.Mutex
	rounds map[string]domain.QuoteRound
}

func newMemArchiver() *memArchiver {
	return &memArchiver{rounds: make(map[string]domain.QuoteRound)}
}

func (a *memArchiver) ArchiveRound(_ context.Context, r domain.QuoteRound) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rounds[r.ID] = r
	return "rounds/" + r.ID + ".json", nil
}

func (a *memArchiver) LoadRound(_ context.Context, id string) (domain.QuoteRound, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.rounds[id]
	if !ok {
		return domain.QuoteRound{}, domain.ErrNotFound
	}
	return r, nil
}

func (a *memArchiver) ListRounds(context.Context) ([]domain.BlobInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.BlobInfo, 0, len(a.rounds))
	for id := range a.rounds {
		out = append(out, domain.BlobInfo{Path: "rounds/" + id + ".json"})
	}
	return out, nil
}

// scriptedCollector returns fixed outcomes and counts rounds.
type scriptedCollector struct {
	mu       sync.Mutex
	outcomes []domain.QuoteOutcome
	err      error
	rounds   int
}

func (c *scriptedCollector) Collect(context.Context, domain.QuoteRequest) ([]domain.QuoteOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rounds++
	return c.outcomes, c.err
}

func (c *scriptedCollector) Endpoints() []string {
	eps := make([]string, len(c.outcomes))
	for i, o := range c.outcomes {
		eps[i] = o.Endpoint
	}
	return eps
}
