package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swaprouter/internal/crypto"
	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/metrics"
	"github.com/alanyoungcy/swaprouter/internal/notify"
	"github.com/alanyoungcy/swaprouter/internal/orders"
)

// OrderCompiler turns a path into settlement orders.
type OrderCompiler interface {
	Compile(path domain.Path, opts orders.CompileOpts) ([]domain.SettlementOrder, error)
}

// OrderSigner signs exchange orders with a local key.
type OrderSigner interface {
	SignOrder(o domain.SignedOrder) ([]byte, error)
	Address() common.Address
}

// CompileDefaults are applied when a request leaves a setting unset.
type CompileDefaults struct {
	Domain            domain.OrderDomain
	Slippage          decimal.Decimal
	BatchBridgeOrders bool
}

// CompileRequest is one path to compile plus optional per-call overrides.
type CompileRequest struct {
	Path              domain.Path
	Side              domain.Side
	InputToken        common.Address
	OutputToken       common.Address
	Slippage          *decimal.Decimal
	BatchBridgeOrders *bool
	LiquidityProvider common.Address
}

// CompileService compiles paths and records the results.
type CompileService struct {
	compiler OrderCompiler
	defaults CompileDefaults
	store    domain.CompilationStore
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier Notifier
	signer   OrderSigner
	logger   *slog.Logger
	now      func() time.Time
}

// NewCompileService creates a CompileService. Attach optional dependencies
// with the With* methods.
func NewCompileService(compiler OrderCompiler, defaults CompileDefaults, logger *slog.Logger) *CompileService {
	return &CompileService{
		compiler: compiler,
		defaults: defaults,
		logger:   logger.With(slog.String("component", "compile_service")),
		now:      time.Now,
	}
}

// WithStore persists every successful compilation.
func (s *CompileService) WithStore(store domain.CompilationStore) *CompileService {
	s.store = store
	return s
}

// WithSignalBus publishes an event per compilation.
func (s *CompileService) WithSignalBus(bus domain.SignalBus) *CompileService {
	s.bus = bus
	return s
}

// WithAudit writes an audit entry per compilation.
func (s *CompileService) WithAudit(audit domain.AuditStore) *CompileService {
	s.audit = audit
	return s
}

// WithNotifier alerts operators when compilation fails on venue
// configuration.
func (s *CompileService) WithNotifier(n Notifier) *CompileService {
	s.notifier = n
	return s
}

// WithSigner enables SignOrder.
func (s *CompileService) WithSigner(signer OrderSigner) *CompileService {
	s.signer = signer
	return s
}

// Compile compiles req.Path. Nothing is stored or published unless the whole
// path compiles.
func (s *CompileService) Compile(ctx context.Context, req CompileRequest) (domain.Compilation, error) {
	opts := orders.CompileOpts{
		Side:                     req.Side,
		InputToken:               req.InputToken,
		OutputToken:              req.OutputToken,
		Domain:                   s.defaults.Domain,
		Slippage:                 s.defaults.Slippage,
		BatchBridgeOrders:        s.defaults.BatchBridgeOrders,
		LiquidityProviderAddress: req.LiquidityProvider,
	}
	if req.Slippage != nil {
		opts.Slippage = *req.Slippage
	}
	if req.BatchBridgeOrders != nil {
		opts.BatchBridgeOrders = *req.BatchBridgeOrders
	}

	compiled, err := s.compiler.Compile(req.Path, opts)
	if err != nil {
		reason := compileErrorReason(err)
		metrics.ObserveCompileError(reason)
		s.logger.WarnContext(ctx, "compile_service: compile failed",
			slog.String("reason", reason),
			slog.Int("fills", len(req.Path)),
			slog.String("error", err.Error()),
		)
		if s.notifier != nil && isVenueConfigError(err) {
			if nErr := s.notifier.Notify(ctx, notify.EventCompileFailed, "Order compilation failed", err.Error()); nErr != nil {
				s.logger.WarnContext(ctx, "compile_service: notify failed", slog.String("error", nErr.Error()))
			}
		}
		return domain.Compilation{}, fmt.Errorf("compile_service: %w", err)
	}

	c := domain.Compilation{
		ID:          uuid.NewString(),
		Side:        req.Side,
		InputToken:  strings.ToLower(req.InputToken.Hex()),
		OutputToken: strings.ToLower(req.OutputToken.Hex()),
		Slippage:    opts.Slippage.String(),
		Batched:     opts.BatchBridgeOrders,
		Orders:      compiled,
		OrderHashes: make([]string, len(compiled)),
		CreatedAt:   s.now().UTC(),
	}
	for i, o := range compiled {
		c.OrderHashes[i] = crypto.OrderHashHex(o.SignedOrder)
		metrics.ObserveCompiledOrder(o.Kind())
	}

	if s.store != nil {
		if err := s.store.Create(ctx, c); err != nil {
			return domain.Compilation{}, fmt.Errorf("compile_service: store compilation: %w", err)
		}
	}

	publish(ctx, s.bus, s.logger, domain.ChannelOrders, Event{
		Type: "orders_compiled",
		Data: map[string]any{
			"id":     c.ID,
			"count":  len(compiled),
			"hashes": c.OrderHashes,
		},
	})

	if s.audit != nil {
		if err := s.audit.Log(ctx, "orders_compiled", map[string]any{
			"id":      c.ID,
			"side":    string(c.Side),
			"count":   len(compiled),
			"batched": c.Batched,
		}); err != nil {
			s.logger.WarnContext(ctx, "compile_service: audit log failed",
				slog.String("id", c.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "compile_service: path compiled",
		slog.String("id", c.ID),
		slog.Int("fills", len(req.Path)),
		slog.Int("orders", len(compiled)),
		slog.Bool("batched", c.Batched),
	)
	return c, nil
}

// Get returns a stored compilation.
func (s *CompileService) Get(ctx context.Context, id string) (domain.Compilation, error) {
	if s.store == nil {
		return domain.Compilation{}, domain.ErrNotFound
	}
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Compilation{}, fmt.Errorf("compile_service: get %s: %w", id, err)
	}
	return c, nil
}

// SignOrder signs o with the configured key and returns it with the
// signature and its order hash. A zero maker address is set to the signer.
func (s *CompileService) SignOrder(ctx context.Context, o domain.SignedOrder) (domain.SignedOrder, string, error) {
	if s.signer == nil {
		return domain.SignedOrder{}, "", fmt.Errorf("compile_service: no signer configured: %w", domain.ErrSigningFailed)
	}
	if o.MakerAddress == (common.Address{}) {
		o.MakerAddress = s.signer.Address()
	}
	if o.MakerAddress != s.signer.Address() {
		return domain.SignedOrder{}, "", fmt.Errorf("compile_service: maker %s is not the signer: %w",
			o.MakerAddress.Hex(), domain.ErrSigningFailed)
	}

	sig, err := s.signer.SignOrder(o)
	if err != nil {
		return domain.SignedOrder{}, "", fmt.Errorf("compile_service: sign: %w", err)
	}
	o.Signature = sig
	hash := crypto.OrderHashHex(o)

	s.logger.InfoContext(ctx, "compile_service: order signed",
		slog.String("hash", hash),
		slog.String("maker", o.MakerAddress.Hex()),
	)
	return o, hash, nil
}

// compileErrorReason is the metrics label for a compile failure.
func compileErrorReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedVenue):
		return "unsupported_venue"
	case errors.Is(err, domain.ErrMissingVenueAddress):
		return "missing_venue_address"
	case errors.Is(err, domain.ErrInvalidSlippage):
		return "invalid_slippage"
	case errors.Is(err, domain.ErrEmptyPath):
		return "empty_path"
	case errors.Is(err, domain.ErrInvalidFill):
		return "invalid_fill"
	default:
		return "other"
	}
}

// isVenueConfigError reports failures an operator has to fix.
func isVenueConfigError(err error) bool {
	return errors.Is(err, domain.ErrMissingVenueAddress) || errors.Is(err, domain.ErrUnsupportedVenue)
}
