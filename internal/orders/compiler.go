// Package orders compiles router paths into settlement orders.
package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swaprouter/internal/assetdata"
	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/fills"
	"github.com/alanyoungcy/swaprouter/internal/venue"
)

// DefaultOrderTTL is how long compiled bridge orders stay valid.
const DefaultOrderTTL = time.Hour

// WalletSignature marks an order whose maker is a contract that validates
// fills itself.
var WalletSignature = []byte{0x04}

var maxSalt = new(big.Int).Lsh(big.NewInt(1), 256)

// CompileOpts controls how one path is compiled.
type CompileOpts struct {
	Side        domain.Side
	InputToken  common.Address
	OutputToken common.Address
	Domain      domain.OrderDomain
	// Slippage is the bridge tolerance, a fraction in [0, 1).
	Slippage          decimal.Decimal
	BatchBridgeOrders bool
	// LiquidityProviderAddress overrides the registry's direct venue when
	// non-zero.
	LiquidityProviderAddress common.Address
}

// makerTakerTokens returns the tokens the compiled orders buy and sell.
func (o CompileOpts) makerTakerTokens() (maker, taker common.Address) {
	if o.Side == domain.SideSell {
		return o.OutputToken, o.InputToken
	}
	return o.InputToken, o.OutputToken
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithClock overrides the time source used for order expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// WithSaltSource overrides the random salt generator.
func WithSaltSource(salt func() (*big.Int, error)) Option {
	return func(c *Compiler) { c.salt = salt }
}

// WithOrderTTL overrides DefaultOrderTTL.
func WithOrderTTL(ttl time.Duration) Option {
	return func(c *Compiler) { c.ttl = ttl }
}

// Compiler turns paths into settlement orders. It is safe for concurrent use.
type Compiler struct {
	registry *venue.Registry
	now      func() time.Time
	salt     func() (*big.Int, error)
	ttl      time.Duration
}

// NewCompiler creates a Compiler that resolves venues through registry.
func NewCompiler(registry *venue.Registry, opts ...Option) *Compiler {
	c := &Compiler{
		registry: registry,
		now:      time.Now,
		salt:     randomSalt,
		ttl:      DefaultOrderTTL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compile collapses path and emits one settlement order per native fill, one
// per direct-venue fill, and for each run of bridge fills either one batched
// order or one order per fill depending on opts.BatchBridgeOrders.
//
// Compilation is all-or-nothing: on error no orders are returned.
func (c *Compiler) Compile(path domain.Path, opts CompileOpts) ([]domain.SettlementOrder, error) {
	if opts.Side != domain.SideSell && opts.Side != domain.SideBuy {
		return nil, fmt.Errorf("orders: compile: unknown side %q", opts.Side)
	}
	if err := validateSlippage(opts.Slippage); err != nil {
		return nil, fmt.Errorf("orders: compile: %w", err)
	}
	if err := fills.Validate(path); err != nil {
		return nil, fmt.Errorf("orders: compile: %w", err)
	}

	reg := c.registry
	if opts.LiquidityProviderAddress != (common.Address{}) {
		reg = reg.WithLiquidityProvider(opts.LiquidityProviderAddress)
	}

	collapsed := fills.Collapse(path)
	out := make([]domain.SettlementOrder, 0, len(collapsed))
	for i := 0; i < len(collapsed); {
		f := collapsed[i]
		switch {
		case f.Source.IsNative():
			out = append(out, nativeOrder(f))
			i++
			continue
		case f.Source.IsDirect():
			o, err := c.bridgeOrder(reg, f, opts)
			if err != nil {
				return nil, fmt.Errorf("orders: compile: fill %d: %w", i, err)
			}
			out = append(out, o)
			i++
			continue
		}

		if !opts.BatchBridgeOrders {
			o, err := c.bridgeOrder(reg, f, opts)
			if err != nil {
				return nil, fmt.Errorf("orders: compile: fill %d: %w", i, err)
			}
			out = append(out, o)
			i++
			continue
		}

		end := bridgeRunEnd(collapsed, i)
		o, err := c.batchedOrder(reg, collapsed[i:end], opts)
		if err != nil {
			return nil, fmt.Errorf("orders: compile: fills %d-%d: %w", i, end-1, err)
		}
		out = append(out, o)
		i = end
	}
	return out, nil
}

// bridgeRunEnd returns the index just past the run of batchable fills that
// starts at i.
func bridgeRunEnd(path domain.Path, i int) int {
	j := i + 1
	for j < len(path) && !path[j].Source.IsNative() && !path[j].Source.IsDirect() {
		j++
	}
	return j
}

// nativeOrder reuses the resting order of f unchanged.
func nativeOrder(f domain.Fill) domain.SettlementOrder {
	return domain.SettlementOrder{
		FillableOrder: *f.NativeOrder,
		Fills:         []domain.Fill{f},
	}
}

func (c *Compiler) bridgeOrder(reg *venue.Registry, f domain.Fill, opts CompileOpts) (domain.SettlementOrder, error) {
	makerToken, takerToken := opts.makerTakerTokens()
	bridge, bridgeData, err := reg.Payload(f.Source, makerToken, takerToken)
	if err != nil {
		return domain.SettlementOrder{}, err
	}
	maker, taker := AdjustAmounts(f, opts.Side, opts.Slippage)
	return c.newBridgeOrder(
		[]domain.Fill{f},
		bridge,
		assetdata.EncodeERC20Bridge(makerToken, bridge, bridgeData),
		assetdata.EncodeERC20(takerToken),
		maker, taker, opts,
	)
}

// batchTotals accumulates the legs of a batched order.
type batchTotals struct {
	maker *big.Int
	taker *big.Int
	calls []assetdata.DexCall
}

func (t batchTotals) add(maker, taker *big.Int, call assetdata.DexCall) batchTotals {
	return batchTotals{
		maker: new(big.Int).Add(t.maker, maker),
		taker: new(big.Int).Add(t.taker, taker),
		calls: append(t.calls[:len(t.calls):len(t.calls)], call),
	}
}

func (c *Compiler) batchedOrder(reg *venue.Registry, run domain.Path, opts CompileOpts) (domain.SettlementOrder, error) {
	makerToken, takerToken := opts.makerTakerTokens()
	forwarder, err := reg.DexForwarder()
	if err != nil {
		return domain.SettlementOrder{}, err
	}

	totals := batchTotals{maker: new(big.Int), taker: new(big.Int)}
	for _, f := range run {
		bridge, bridgeData, err := reg.Payload(f.Source, makerToken, takerToken)
		if err != nil {
			return domain.SettlementOrder{}, err
		}
		maker, taker := AdjustAmounts(f, opts.Side, opts.Slippage)
		totals = totals.add(maker, taker, assetdata.DexCall{
			Target:            bridge,
			InputTokenAmount:  taker,
			OutputTokenAmount: maker,
			BridgeData:        bridgeData,
		})
	}

	forwarderData, err := assetdata.EncodeDexForwarderData(takerToken, totals.calls)
	if err != nil {
		return domain.SettlementOrder{}, err
	}
	return c.newBridgeOrder(
		append(domain.Path(nil), run...),
		forwarder,
		assetdata.EncodeERC20Bridge(makerToken, forwarder, forwarderData),
		assetdata.EncodeERC20(takerToken),
		totals.maker, totals.taker, opts,
	)
}

// newBridgeOrder fills in the fields shared by every bridge order.
func (c *Compiler) newBridgeOrder(
	path []domain.Fill,
	maker common.Address,
	makerAssetData, takerAssetData []byte,
	makerAmount, takerAmount *big.Int,
	opts CompileOpts,
) (domain.SettlementOrder, error) {
	salt, err := c.salt()
	if err != nil {
		return domain.SettlementOrder{}, fmt.Errorf("orders: salt: %w", err)
	}
	expiry := c.now().Add(c.ttl).Unix()

	return domain.SettlementOrder{
		FillableOrder: domain.FillableOrder{
			SignedOrder: domain.SignedOrder{
				ChainID:               opts.Domain.ChainID,
				ExchangeAddress:       opts.Domain.ExchangeAddress,
				MakerAddress:          maker,
				MakerAssetAmount:      makerAmount,
				TakerAssetAmount:      takerAmount,
				MakerFee:              new(big.Int),
				TakerFee:              new(big.Int),
				ExpirationTimeSeconds: big.NewInt(expiry),
				Salt:                  salt,
				MakerAssetData:        makerAssetData,
				TakerAssetData:        takerAssetData,
				MakerFeeAssetData:     []byte{},
				TakerFeeAssetData:     []byte{},
				Signature:             append([]byte(nil), WalletSignature...),
			},
			FillableMakerAssetAmount: new(big.Int).Set(makerAmount),
			FillableTakerAssetAmount: new(big.Int).Set(takerAmount),
			FillableTakerFeeAmount:   new(big.Int),
		},
		Fills: path,
	}, nil
}

func randomSalt() (*big.Int, error) {
	return rand.Int(rand.Reader, maxSalt)
}
