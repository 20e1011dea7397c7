// Package rfq requests firm quotes from market makers and filters the
// responses down to the ones that can be trusted.
package rfq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/swaprouter/internal/assetdata"
	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/metrics"
	"github.com/alanyoungcy/swaprouter/internal/platform/maker"
)

// DefaultMakerTimeout bounds each maker call when the request sets none.
const DefaultMakerTimeout = time.Second

// MakerClient fetches one firm quote from one endpoint.
type MakerClient interface {
	FirmQuote(ctx context.Context, endpoint string, p maker.QuoteParams) (maker.APIFirmQuote, error)
}

// Requestor fans a quote request out to a fixed roster of makers.
type Requestor struct {
	endpoints []string
	client    MakerClient
	validator *Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewRequestor creates a Requestor for endpoints.
func NewRequestor(endpoints []string, client MakerClient, logger *slog.Logger) *Requestor {
	return &Requestor{
		endpoints: append([]string(nil), endpoints...),
		client:    client,
		validator: NewValidator(),
		logger:    logger.With(slog.String("component", "rfq_requestor")),
		now:       time.Now,
	}
}

// Endpoints returns the configured maker roster.
func (r *Requestor) Endpoints() []string {
	return append([]string(nil), r.endpoints...)
}

// RequestFirmQuotes returns the quotes that passed validation, in roster
// order. Maker failures never surface as errors; only a malformed request
// does.
func (r *Requestor) RequestFirmQuotes(ctx context.Context, req domain.QuoteRequest) ([]domain.FirmQuote, error) {
	outcomes, err := r.Collect(ctx, req)
	if err != nil {
		return nil, err
	}
	return domain.AcceptedQuotes(outcomes), nil
}

// Collect calls every maker once, concurrently, each bounded by the request
// timeout, and returns one outcome per endpoint in roster order once every
// call has finished.
func (r *Requestor) Collect(ctx context.Context, req domain.QuoteRequest) ([]domain.QuoteOutcome, error) {
	params, timeout, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	outcomes := make([]domain.QuoteOutcome, len(r.endpoints))
	var g errgroup.Group
	for i, endpoint := range r.endpoints {
		g.Go(func() error {
			outcomes[i] = r.call(ctx, endpoint, params, req, timeout)
			return nil
		})
	}
	_ = g.Wait()

	accepted := 0
	for _, o := range outcomes {
		metrics.ObserveQuoteOutcome(o.Endpoint, string(o.Kind), o.Latency)
		if o.Accepted() {
			accepted++
		}
	}
	metrics.ObserveQuoteRound(accepted)
	r.logger.Debug("rfq: round complete",
		slog.Int("makers", len(outcomes)),
		slog.Int("accepted", accepted),
	)
	return outcomes, nil
}

// call performs one maker request and never returns an error; the failure
// is folded into the outcome.
func (r *Requestor) call(ctx context.Context, endpoint string, params maker.QuoteParams, req domain.QuoteRequest, timeout time.Duration) domain.QuoteOutcome {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	apiQuote, err := r.client.FirmQuote(callCtx, endpoint, params)
	latency := r.now().Sub(start)
	out := domain.QuoteOutcome{Endpoint: endpoint, Latency: latency}

	if err != nil {
		out.Kind = classify(callCtx, err)
		out.Err = err.Error()
		r.logger.Warn("rfq: maker call failed",
			slog.String("endpoint", endpoint),
			slog.String("kind", string(out.Kind)),
			slog.String("api_key", redactKey(req.APIKey)),
			slog.String("taker", req.TakerAddress),
			slog.String("error", err.Error()),
		)
		return out
	}

	q, err := r.validator.Validate(apiQuote, req, endpoint, r.now())
	if err != nil {
		out.Kind = domain.OutcomeSchema
		var rej *rejection
		if errors.As(err, &rej) {
			out.Kind = rej.kind
		}
		out.Err = err.Error()
		r.logger.Warn("rfq: quote rejected",
			slog.String("endpoint", endpoint),
			slog.String("kind", string(out.Kind)),
			slog.String("error", err.Error()),
		)
		return out
	}

	out.Kind = domain.OutcomeAccepted
	out.Quote = &q
	return out
}

// classify maps a client error to an outcome kind.
func classify(callCtx context.Context, err error) domain.OutcomeKind {
	var statusErr *maker.HTTPStatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return domain.OutcomeTimeout
	case errors.Is(err, maker.ErrMalformedResponse):
		return domain.OutcomeSchema
	case errors.As(err, &statusErr),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNotFound):
		return domain.OutcomeHTTPStatus
	default:
		return domain.OutcomeTransport
	}
}

// buildParams checks req and derives the maker query from it.
func buildParams(req domain.QuoteRequest) (maker.QuoteParams, time.Duration, error) {
	buy, err := assetdata.DecodeHex(req.MakerAssetData)
	if err != nil {
		return maker.QuoteParams{}, 0, fmt.Errorf("%w: maker asset data: %v", domain.ErrInvalidQuoteRequest, err)
	}
	sell, err := assetdata.DecodeHex(req.TakerAssetData)
	if err != nil {
		return maker.QuoteParams{}, 0, fmt.Errorf("%w: taker asset data: %v", domain.ErrInvalidQuoteRequest, err)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return maker.QuoteParams{}, 0, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidQuoteRequest)
	}

	p := maker.QuoteParams{
		SellToken:    strings.ToLower(sell.Token.Hex()),
		BuyToken:     strings.ToLower(buy.Token.Hex()),
		TakerAddress: req.TakerAddress,
		APIKey:       req.APIKey,
	}
	switch req.Side {
	case domain.SideBuy:
		p.BuyAmount = req.Amount.String()
	case domain.SideSell:
		p.SellAmount = req.Amount.String()
	default:
		return maker.QuoteParams{}, 0, fmt.Errorf("%w: unknown side %q", domain.ErrInvalidQuoteRequest, req.Side)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultMakerTimeout
	}
	return p, timeout, nil
}

func redactKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
