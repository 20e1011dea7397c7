package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/notify"
	"github.com/alanyoungcy/swaprouter/internal/rfq"
)

// QuoteCollector runs one firm-quote round across the maker roster.
type QuoteCollector interface {
	Collect(ctx context.Context, req domain.QuoteRequest) ([]domain.QuoteOutcome, error)
	Endpoints() []string
}

// QuoteResult is what a caller gets back from one request.
type QuoteResult struct {
	// RoundID is empty when the quotes came from the cache.
	RoundID string             `json:"roundId,omitempty"`
	Quotes  []domain.FirmQuote `json:"quotes"`
	Cached  bool               `json:"cached"`
}

// QuoteServiceConfig tunes QuoteService.
type QuoteServiceConfig struct {
	// RateLimitPerMinute bounds rounds per API key; 0 disables the limit.
	RateLimitPerMinute int
	// CacheTTL is how long a round's quotes answer identical requests.
	CacheTTL time.Duration
}

// QuoteService requests firm quotes and records every round.
type QuoteService struct {
	requestor QuoteCollector
	cfg       QuoteServiceConfig
	limiter   domain.RateLimiter
	cache     domain.QuoteCache
	locks     domain.LockManager
	store     domain.QuoteStore
	archiver  domain.RoundArchiver
	bus       domain.SignalBus
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewQuoteService creates a QuoteService. Attach optional dependencies with
// the With* methods.
func NewQuoteService(requestor QuoteCollector, cfg QuoteServiceConfig, logger *slog.Logger) *QuoteService {
	return &QuoteService{
		requestor: requestor,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "quote_service")),
		now:       time.Now,
	}
}

// WithRateLimiter limits rounds per API key.
func (s *QuoteService) WithRateLimiter(l domain.RateLimiter) *QuoteService {
	s.limiter = l
	return s
}

// WithCache answers repeated identical requests from the cache, and the
// lock manager keeps concurrent identical requests down to one round.
func (s *QuoteService) WithCache(c domain.QuoteCache, locks domain.LockManager) *QuoteService {
	s.cache = c
	s.locks = locks
	return s
}

// WithStore persists accepted quotes.
func (s *QuoteService) WithStore(store domain.QuoteStore) *QuoteService {
	s.store = store
	return s
}

// WithArchiver archives every round with all its outcomes.
func (s *QuoteService) WithArchiver(a domain.RoundArchiver) *QuoteService {
	s.archiver = a
	return s
}

// WithSignalBus publishes an event per round.
func (s *QuoteService) WithSignalBus(bus domain.SignalBus) *QuoteService {
	s.bus = bus
	return s
}

// WithNotifier alerts operators when no maker returns a usable quote.
func (s *QuoteService) WithNotifier(n Notifier) *QuoteService {
	s.notifier = n
	return s
}

// RequestFirmQuotes returns the validated quotes for req, deduplicated by
// order hash. Maker failures never surface as errors.
func (s *QuoteService) RequestFirmQuotes(ctx context.Context, req domain.QuoteRequest) (QuoteResult, error) {
	if err := s.checkRateLimit(ctx, req.APIKey); err != nil {
		return QuoteResult{}, err
	}

	key := RequestKey(req)
	if quotes, ok := s.cached(ctx, key); ok {
		return QuoteResult{Quotes: quotes, Cached: true}, nil
	}

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "rfq:"+key, roundTimeout(req)+time.Second)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			// Another instance is running the same round; give it one
			// timeout to fill the cache before running our own.
			if quotes, ok := s.awaitCached(ctx, key, roundTimeout(req)); ok {
				return QuoteResult{Quotes: quotes, Cached: true}, nil
			}
		case err != nil:
			s.logger.WarnContext(ctx, "quote_service: lock failed", slog.String("error", err.Error()))
		default:
			defer unlock()
		}
	}

	started := s.now()
	outcomes, err := s.requestor.Collect(ctx, req)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("quote_service: %w", err)
	}

	round := domain.QuoteRound{
		ID:        uuid.NewString(),
		Request:   req,
		Outcomes:  outcomes,
		StartedAt: started.UTC(),
		Duration:  s.now().Sub(started),
	}
	quotes := dedupByHash(domain.AcceptedQuotes(outcomes))
	for i := range quotes {
		quotes[i].ID = uuid.NewString()
	}

	s.record(ctx, round, quotes)

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, quotes, s.cfg.CacheTTL); err != nil {
			s.logger.WarnContext(ctx, "quote_service: cache set failed", slog.String("error", err.Error()))
		}
	}

	publish(ctx, s.bus, s.logger, domain.ChannelQuotes, Event{
		Type: "quotes_received",
		Data: map[string]any{
			"round_id": round.ID,
			"makers":   len(outcomes),
			"accepted": len(quotes),
		},
	})

	if len(quotes) == 0 && len(outcomes) > 0 && s.notifier != nil {
		msg := fmt.Sprintf("round %s: 0 of %d makers returned a usable quote (%s)",
			round.ID, len(outcomes), summarizeOutcomes(outcomes))
		if err := s.notifier.Notify(ctx, notify.EventRFQEmpty, "RFQ round empty", msg); err != nil {
			s.logger.WarnContext(ctx, "quote_service: notify failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "quote_service: round complete",
		slog.String("round_id", round.ID),
		slog.Int("makers", len(outcomes)),
		slog.Int("accepted", len(quotes)),
		slog.Duration("duration", round.Duration),
	)
	return QuoteResult{RoundID: round.ID, Quotes: quotes, Cached: false}, nil
}

// Recent lists stored quotes newest first.
func (s *QuoteService) Recent(ctx context.Context, opts domain.ListOpts) ([]domain.FirmQuote, error) {
	if s.store == nil {
		return []domain.FirmQuote{}, nil
	}
	quotes, err := s.store.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("quote_service: recent: %w", err)
	}
	return quotes, nil
}

// Round loads an archived round.
func (s *QuoteService) Round(ctx context.Context, id string) (domain.QuoteRound, error) {
	if s.archiver == nil {
		return domain.QuoteRound{}, domain.ErrNotFound
	}
	round, err := s.archiver.LoadRound(ctx, id)
	if err != nil {
		return domain.QuoteRound{}, fmt.Errorf("quote_service: round %s: %w", id, err)
	}
	return round, nil
}

// Rounds lists archived rounds.
func (s *QuoteService) Rounds(ctx context.Context) ([]domain.BlobInfo, error) {
	if s.archiver == nil {
		return []domain.BlobInfo{}, nil
	}
	rounds, err := s.archiver.ListRounds(ctx)
	if err != nil {
		return nil, fmt.Errorf("quote_service: list rounds: %w", err)
	}
	return rounds, nil
}

// Makers returns the configured maker roster.
func (s *QuoteService) Makers() []string {
	return s.requestor.Endpoints()
}

func (s *QuoteService) checkRateLimit(ctx context.Context, apiKey string) error {
	if s.limiter == nil || s.cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	key := "rfq:" + apiKey
	if apiKey == "" {
		key = "rfq:anonymous"
	}
	allowed, err := s.limiter.Allow(ctx, key, s.cfg.RateLimitPerMinute, time.Minute)
	if err != nil {
		// A limiter outage must not fail the round; it fails open like the
		// HTTP middleware.
		s.logger.WarnContext(ctx, "quote_service: rate limiter failed",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !allowed {
		return fmt.Errorf("quote_service: %w", domain.ErrRateLimited)
	}
	return nil
}

func (s *QuoteService) cached(ctx context.Context, key string) ([]domain.FirmQuote, bool) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return nil, false
	}
	quotes, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "quote_service: cache get failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	return quotes, true
}

// awaitCached polls the cache until it holds key or wait elapses.
func (s *QuoteService) awaitCached(ctx context.Context, key string, wait time.Duration) ([]domain.FirmQuote, bool) {
	const poll = 50 * time.Millisecond
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-deadline.C:
			return s.cached(ctx, key)
		case <-ticker.C:
			if quotes, ok := s.cached(ctx, key); ok {
				return quotes, true
			}
		}
	}
}

// record stores the accepted quotes and archives the round concurrently.
// Both are best effort.
func (s *QuoteService) record(ctx context.Context, round domain.QuoteRound, quotes []domain.FirmQuote) {
	var g errgroup.Group
	if s.store != nil && len(quotes) > 0 {
		g.Go(func() error {
			if err := s.store.InsertBatch(ctx, round.ID, quotes); err != nil {
				s.logger.WarnContext(ctx, "quote_service: persist quotes failed",
					slog.String("round_id", round.ID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	if s.archiver != nil {
		g.Go(func() error {
			path, err := s.archiver.ArchiveRound(ctx, round)
			if err != nil {
				s.logger.WarnContext(ctx, "quote_service: archive round failed",
					slog.String("round_id", round.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			s.logger.DebugContext(ctx, "quote_service: round archived",
				slog.String("round_id", round.ID),
				slog.String("path", path),
			)
			return nil
		})
	}
	_ = g.Wait()
}

// RequestKey identifies requests that would produce the same round. The
// taker API key is part of it because makers gate and price by that key; only
// its hash enters the key.
func RequestKey(req domain.QuoteRequest) string {
	amount := ""
	if req.Amount != nil {
		amount = req.Amount.String()
	}
	parts := []string{
		strings.ToLower(req.MakerAssetData),
		strings.ToLower(req.TakerAssetData),
		string(req.Side),
		amount,
		strings.ToLower(req.TakerAddress),
		hexutil.Encode(ethcrypto.Keccak256([]byte(req.APIKey))),
	}
	return hexutil.Encode(ethcrypto.Keccak256([]byte(strings.Join(parts, "|"))))
}

// dedupByHash keeps the first quote for each order hash.
func dedupByHash(quotes []domain.FirmQuote) []domain.FirmQuote {
	seen := make(map[string]bool, len(quotes))
	out := make([]domain.FirmQuote, 0, len(quotes))
	for _, q := range quotes {
		h := strings.ToLower(q.OrderHash)
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, q)
	}
	return out
}

func roundTimeout(req domain.QuoteRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return rfq.DefaultMakerTimeout
}

// summarizeOutcomes counts outcomes per kind, e.g. "timeout=2 schema=1".
func summarizeOutcomes(outcomes []domain.QuoteOutcome) string {
	counts := make(map[domain.OutcomeKind]int)
	var order []domain.OutcomeKind
	for _, o := range outcomes {
		if counts[o.Kind] == 0 {
			order = append(order, o.Kind)
		}
		counts[o.Kind]++
	}
	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
