package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/swaprouter/internal/assetdata"
	"github.com/alanyoungcy/swaprouter/internal/config"
	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/orders"
	"github.com/alanyoungcy/swaprouter/internal/platform/maker"
	"github.com/alanyoungcy/swaprouter/internal/rfq"
	"github.com/alanyoungcy/swaprouter/internal/server"
	"github.com/alanyoungcy/swaprouter/internal/server/handler"
	"github.com/alanyoungcy/swaprouter/internal/server/ws"
	"github.com/alanyoungcy/swaprouter/internal/service"
	"github.com/alanyoungcy/swaprouter/internal/venue"
)

// shutdownTimeout bounds how long in-flight requests get on shutdown.
const shutdownTimeout = 5 * time.Second

// ServerMode serves compilation and firm-quote rounds over HTTP, and pushes
// bus events to WebSocket clients when Redis is enabled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	compileSvc, err := a.buildCompileService(deps)
	if err != nil {
		return err
	}
	quoteSvc := a.buildQuoteService(deps)

	health := handler.NewHealthHandler(a.logger)
	for _, name := range deps.CheckNames() {
		health.WithCheck(name, deps.Checks[name])
	}

	handlers := server.Handlers{
		Health:  health,
		Status:  handler.NewStatusHandler(a.cfg.Mode, quoteSvc.Makers, a.startedAt),
		Compile: handler.NewCompileHandler(compileSvc, a.logger),
		Quotes: handler.NewQuoteHandler(quoteSvc, handler.QuoteDefaults{
			APIKey:       a.cfg.RFQT.APIKey,
			TakerAddress: a.cfg.RFQT.TakerAddress,
			Timeout:      a.cfg.RFQT.Timeout.Duration,
		}, a.logger),
	}

	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:           a.cfg.Mode,
			StartedAt:      a.startedAt,
			AllowedOrigins: a.cfg.Server.CORSOrigins,
		})
		g.Go(func() error { return hub.Run(ctx) })
	}

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKeys:            a.cfg.Server.APIKeys,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
		TrustedProxies:     a.cfg.Server.TrustedProxies,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// CompileMode compiles the path in cfg.Compiler.PathFile once and writes the
// compilation as JSON to the app's output.
func (a *App) CompileMode(ctx context.Context, deps *Dependencies) error {
	data, err := os.ReadFile(a.cfg.Compiler.PathFile)
	if err != nil {
		return fmt.Errorf("app: read path file: %w", err)
	}
	path, err := orders.ParsePath(data)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	side, err := domain.ParseSide(a.cfg.Compiler.Side)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	svc, err := a.buildCompileService(deps)
	if err != nil {
		return err
	}
	compilation, err := svc.Compile(ctx, service.CompileRequest{
		Path:        path,
		Side:        side,
		InputToken:  common.HexToAddress(a.cfg.Compiler.InputToken),
		OutputToken: common.HexToAddress(a.cfg.Compiler.OutputToken),
	})
	if err != nil {
		return fmt.Errorf("app: compile %s: %w", a.cfg.Compiler.PathFile, err)
	}

	a.logger.InfoContext(ctx, "compiled path",
		slog.String("id", compilation.ID),
		slog.Int("fills", len(path)),
		slog.Int("orders", len(compilation.Orders)),
	)
	return a.writeJSON(compilation)
}

// QuoteMode runs one firm-quote round for the configured pair and writes the
// accepted quotes as JSON to the app's output.
func (a *App) QuoteMode(ctx context.Context, deps *Dependencies) error {
	req, err := quoteRequestFromConfig(a.cfg.RFQT)
	if err != nil {
		return err
	}

	res, err := a.buildQuoteService(deps).RequestFirmQuotes(ctx, req)
	if err != nil {
		return fmt.Errorf("app: request quotes: %w", err)
	}
	if res.Quotes == nil {
		res.Quotes = []domain.FirmQuote{}
	}

	a.logger.InfoContext(ctx, "quote round complete",
		slog.String("round_id", res.RoundID),
		slog.Int("makers", len(a.cfg.RFQT.MakerEndpoints)),
		slog.Int("accepted", len(res.Quotes)),
	)
	return a.writeJSON(res)
}

// buildCompileService assembles the compiler from the configured contracts
// and attaches whatever infrastructure deps carries.
func (a *App) buildCompileService(deps *Dependencies) (*service.CompileService, error) {
	slippage, err := orders.ParseSlippage(a.cfg.Compiler.Slippage)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	c := a.cfg.Contracts
	registry := venue.NewRegistry(venue.Addresses{
		Eth2DaiBridge:      addressOrZero(c.Eth2DaiBridge),
		KyberBridge:        addressOrZero(c.KyberBridge),
		UniswapBridge:      addressOrZero(c.UniswapBridge),
		CurveBridge:        addressOrZero(c.CurveBridge),
		DexForwarderBridge: addressOrZero(c.DexForwarderBridge),
		LiquidityProvider:  addressOrZero(c.LiquidityProvider),
	}, nil)
	compiler := orders.NewCompiler(registry, orders.WithOrderTTL(a.cfg.Compiler.OrderTTL.Duration))

	svc := service.NewCompileService(compiler, service.CompileDefaults{
		Domain: domain.OrderDomain{
			ChainID:         int64(a.cfg.Chain.ChainID),
			ExchangeAddress: common.HexToAddress(a.cfg.Chain.ExchangeAddress),
		},
		Slippage:          slippage,
		BatchBridgeOrders: a.cfg.Compiler.BatchBridgeOrders,
	}, a.logger).
		WithStore(deps.CompilationStore).
		WithSignalBus(deps.SignalBus).
		WithAudit(deps.AuditStore)

	// Typed nils must not reach the interface-typed setters.
	if deps.Notifier != nil {
		svc.WithNotifier(deps.Notifier)
	}
	if deps.Signer != nil {
		svc.WithSigner(deps.Signer)
	}
	return svc, nil
}

// buildQuoteService assembles the requestor over the configured maker
// roster and attaches whatever infrastructure deps carries.
func (a *App) buildQuoteService(deps *Dependencies) *service.QuoteService {
	requestor := rfq.NewRequestor(a.cfg.RFQT.MakerEndpoints, maker.NewClient(nil), a.logger)
	svc := service.NewQuoteService(requestor, service.QuoteServiceConfig{
		RateLimitPerMinute: a.cfg.RFQT.RateLimitPerMinute,
		CacheTTL:           a.cfg.RFQT.CacheTTL.Duration,
	}, a.logger).
		WithRateLimiter(deps.RateLimiter).
		WithCache(deps.QuoteCache, deps.LockManager).
		WithStore(deps.QuoteStore).
		WithArchiver(deps.Archiver).
		WithSignalBus(deps.SignalBus)

	if deps.Notifier != nil {
		svc.WithNotifier(deps.Notifier)
	}
	return svc
}

// quoteRequestFromConfig builds the quote-mode request for the configured
// token pair.
func quoteRequestFromConfig(cfg config.RFQTConfig) (domain.QuoteRequest, error) {
	side, err := domain.ParseSide(cfg.Side)
	if err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("app: %w", err)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(cfg.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return domain.QuoteRequest{}, fmt.Errorf("app: rfqt amount %q must be a positive integer", cfg.Amount)
	}
	return domain.QuoteRequest{
		MakerAssetData: hexutil.Encode(assetdata.EncodeERC20(common.HexToAddress(cfg.MakerToken))),
		TakerAssetData: hexutil.Encode(assetdata.EncodeERC20(common.HexToAddress(cfg.TakerToken))),
		Side:           side,
		Amount:         amount,
		APIKey:         cfg.APIKey,
		TakerAddress:   cfg.TakerAddress,
		Timeout:        cfg.Timeout.Duration,
	}, nil
}

func addressOrZero(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("app: write output: %w", err)
	}
	return nil
}
