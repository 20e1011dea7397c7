package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/notify"
)

func accepted(endpoint, hash string) domain.QuoteOutcome {
	return domain.QuoteOutcome{
		Endpoint: endpoint,
		Kind:     domain.OutcomeAccepted,
		Quote:    &domain.FirmQuote{Endpoint: endpoint, OrderHash: hash},
	}
}

func quoteRequest() domain.QuoteRequest {
	return domain.QuoteRequest{
		MakerAssetData: "0xf47261b00000000000000000000000006b175474e89094c44da98b954eedeac495271d0f",
		TakerAssetData: "0xf47261b0000000000000000000000000a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		Side:           domain.SideSell,
		Amount:         big.NewInt(1_000_000),
		APIKey:         "key",
		Timeout:        100 * time.Millisecond,
	}
}

func TestQuoteServiceRecordsRound(t *testing.T) {
	collector := &scriptedCollector{outcomes: []domain.QuoteOutcome{
		accepted("http://a", "0xAA"),
		{Endpoint: "http://b", Kind: domain.OutcomeTimeout, Err: "deadline"},
		accepted("http://c", "0xaa"),
		accepted("http://d", "0xbb"),
	}}
	store := newMemQuoteStore()
	archiver := newMemArchiver()
	bus := newRecordingBus()
	svc := NewQuoteService(collector, QuoteServiceConfig{}, discardLogger()).
		WithStore(store).
		WithArchiver(archiver).
		WithSignalBus(bus)

	res, err := svc.RequestFirmQuotes(context.Background(), quoteRequest())
	require.NoError(t, err)
	assert.False(t, res.Cached)
	require.Len(t, res.Quotes, 2, "quotes with the same order hash are deduplicated")
	assert.Equal(t, "http://a", res.Quotes[0].Endpoint)
	assert.Equal(t, "http://d", res.Quotes[1].Endpoint)
	assert.NotEmpty(t, res.Quotes[0].ID)

	assert.Len(t, store.rounds[res.RoundID], 2)
	round, err := svc.Round(context.Background(), res.RoundID)
	require.NoError(t, err)
	assert.Len(t, round.Outcomes, 4, "the archive keeps every outcome")
	rounds, err := svc.Rounds(context.Background())
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, "rounds/"+res.RoundID+".json", rounds[0].Path)
	assert.Len(t, bus.published[domain.ChannelQuotes], 1)
	assert.Equal(t, []string{"http://a", "http://b", "http://c", "http://d"}, svc.Makers())
}

func TestQuoteServiceCachesRounds(t *testing.T) {
	collector := &scriptedCollector{outcomes: []domain.QuoteOutcome{accepted("http://a", "0x01")}}
	svc := NewQuoteService(collector, QuoteServiceConfig{CacheTTL: time.Minute}, discardLogger()).
		WithCache(newMemQuoteCache(), &memLocks{})

	first, err := svc.RequestFirmQuotes(context.Background(), quoteRequest())
	require.NoError(t, err)
	second, err := svc.RequestFirmQuotes(context.Background(), quoteRequest())
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Quotes, second.Quotes)
	assert.Equal(t, 1, collector.rounds)

	other := quoteRequest()
	other.Amount = big.NewInt(5)
	_, err = svc.RequestFirmQuotes(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 2, collector.rounds, "a different amount is a different round")
}

func TestQuoteServiceLockHeldRunsAfterWait(t *testing.T) {
	collector := &scriptedCollector{outcomes: []domain.QuoteOutcome{accepted("http://a", "0x01")}}
	locks := &memLocks{}
	svc := NewQuoteService(collector, QuoteServiceConfig{CacheTTL: time.Minute}, discardLogger()).
		WithCache(newMemQuoteCache(), locks)

	req := quoteRequest()
	unlock, err := locks.Acquire(context.Background(), "rfq:"+RequestKey(req), time.Minute)
	require.NoError(t, err)
	defer unlock()

	res, err := svc.RequestFirmQuotes(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 1, collector.rounds)
}

func TestQuoteServiceRateLimit(t *testing.T) {
	collector := &scriptedCollector{}
	svc := NewQuoteService(collector, QuoteServiceConfig{RateLimitPerMinute: 1}, discardLogger()).
		WithRateLimiter(&countingLimiter{})

	_, err := svc.RequestFirmQuotes(context.Background(), quoteRequest())
	require.NoError(t, err)
	_, err = svc.RequestFirmQuotes(context.Background(), quoteRequest())
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	other := quoteRequest()
	other.APIKey = "another"
	_, err = svc.RequestFirmQuotes(context.Background(), other)
	assert.NoError(t, err, "limits are per API key")
}

func TestQuoteServiceRateLimiterOutageFailsOpen(t *testing.T) {
	collector := &scriptedCollector{outcomes: []domain.QuoteOutcome{accepted("http://a", "0x01")}}
	svc := NewQuoteService(collector, QuoteServiceConfig{RateLimitPerMinute: 1}, discardLogger()).
		WithRateLimiter(brokenLimiter{err: errors.New("dial tcp: connection refused")})

	res, err := svc.RequestFirmQuotes(context.Background(), quoteRequest())
	require.NoError(t, err)
	assert.Len(t, res.Quotes, 1)
	assert.Equal(t, 1, collector.rounds)
}

func TestQuoteServiceNotifiesEmptyRound(t *testing.T) {
	n := &recordingNotifier{}
	collector := &scriptedCollector{outcomes: []domain.QuoteOutcome{
		{Endpoint: "http://a", Kind: domain.OutcomeSchema},
		{Endpoint: "http://b", Kind: domain.OutcomeTimeout},
	}}
	svc := NewQuoteService(collector, QuoteServiceConfig{}, discardLogger()).WithNotifier(n)

	res, err := svc.RequestFirmQuotes(context.Background(), quoteRequest())
	require.NoError(t, err)
	assert.Empty(t, res.Quotes)
	assert.Equal(t, []string{notify.EventRFQEmpty}, n.events)

	n.events = nil
	_, err = NewQuoteService(&scriptedCollector{}, QuoteServiceConfig{}, discardLogger()).
		WithNotifier(n).
		RequestFirmQuotes(context.Background(), quoteRequest())
	require.NoError(t, err)
	assert.Empty(t, n.events, "no makers configured is not an alert")
}

func TestQuoteServiceInvalidRequest(t *testing.T) {
	collector := &scriptedCollector{err: domain.ErrInvalidQuoteRequest}
	_, err := NewQuoteService(collector, QuoteServiceConfig{}, discardLogger()).
		RequestFirmQuotes(context.Background(), quoteRequest())
	assert.True(t, errors.Is(err, domain.ErrInvalidQuoteRequest))
}

func TestRequestKeyIgnoresCaseButNotAPIKey(t *testing.T) {
	a := quoteRequest()
	b := quoteRequest()
	b.MakerAssetData = "0xF47261B00000000000000000000000006B175474E89094C44DA98B954EEDEAC495271D0F"
	assert.Equal(t, RequestKey(a), RequestKey(b))

	b.APIKey = "other"
	assert.NotEqual(t, RequestKey(a), RequestKey(b), "rounds are not shared across API keys")
	assert.NotContains(t, RequestKey(b), "other")

	b = quoteRequest()
	b.Side = domain.SideBuy
	assert.NotEqual(t, RequestKey(a), RequestKey(b))
}

func TestQuoteServiceCacheIsPerAPIKey(t *testing.T) {
	collector := &scriptedCollector{outcomes: []domain.QuoteOutcome{accepted("http://a", "0x01")}}
	svc := NewQuoteService(collector, QuoteServiceConfig{CacheTTL: time.Minute}, discardLogger()).
		WithCache(newMemQuoteCache(), &memLocks{})

	_, err := svc.RequestFirmQuotes(context.Background(), quoteRequest())
	require.NoError(t, err)

	other := quoteRequest()
	other.APIKey = "another"
	res, err := svc.RequestFirmQuotes(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, res.Cached, "another key gets its own round")
	assert.Equal(t, 2, collector.rounds)
}

func TestSummarizeOutcomes(t *testing.T) {
	got := summarizeOutcomes([]domain.QuoteOutcome{
		{Kind: domain.OutcomeTimeout}, {Kind: domain.OutcomeSchema}, {Kind: domain.OutcomeTimeout},
	})
	assert.Equal(t, "timeout=2 schema=1", got)
}
