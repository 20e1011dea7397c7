package orders

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swaprouter/internal/assetdata"
	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/venue"
)

var (
	usdc      = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	dai       = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	exchange  = common.HexToAddress("0x61935cbdd02287b511119ddb11aeb42f1593b7ef")
	fixedTime = time.Unix(1_700_000_000, 0)
)

func testAddresses() venue.Addresses {
	return venue.Addresses{
		Eth2DaiBridge:      common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		KyberBridge:        common.HexToAddress("0x00000000000000000000000000000000000000e2"),
		UniswapBridge:      common.HexToAddress("0x00000000000000000000000000000000000000e3"),
		CurveBridge:        common.HexToAddress("0x00000000000000000000000000000000000000e4"),
		DexForwarderBridge: common.HexToAddress("0x00000000000000000000000000000000000000e5"),
		LiquidityProvider:  common.HexToAddress("0x00000000000000000000000000000000000000e6"),
	}
}

func newTestCompiler(t *testing.T, addrs venue.Addresses) *Compiler {
	t.Helper()
	return NewCompiler(
		venue.NewRegistry(addrs, nil),
		WithClock(func() time.Time { return fixedTime }),
		WithSaltSource(func() (*big.Int, error) { return big.NewInt(42), nil }),
	)
}

func sellOpts(batch bool) CompileOpts {
	return CompileOpts{
		Side:              domain.SideSell,
		InputToken:        usdc,
		OutputToken:       dai,
		Domain:            domain.OrderDomain{ChainID: 1, ExchangeAddress: exchange},
		Slippage:          decimal.RequireFromString("0.01"),
		BatchBridgeOrders: batch,
	}
}

func bridgeFill(src domain.Source, in, out int64) domain.Fill {
	return domain.Fill{Source: src, Input: big.NewInt(in), Output: big.NewInt(out)}
}

func nativeFill(in, out int64) domain.Fill {
	resting := &domain.FillableOrder{
		SignedOrder: domain.SignedOrder{
			ChainID:          1,
			ExchangeAddress:  exchange,
			MakerAddress:     common.HexToAddress("0x00000000000000000000000000000000000000bb"),
			MakerAssetAmount: big.NewInt(out * 2),
			TakerAssetAmount: big.NewInt(in * 2),
			MakerFee:         new(big.Int),
			TakerFee:         new(big.Int),
			Salt:             big.NewInt(7),
			MakerAssetData:   assetdata.EncodeERC20(dai),
			TakerAssetData:   assetdata.EncodeERC20(usdc),
			Signature:        []byte{0x1b, 0x02},
		},
		FillableMakerAssetAmount: big.NewInt(out),
		FillableTakerAssetAmount: big.NewInt(in),
		FillableTakerFeeAmount:   new(big.Int),
	}
	return domain.Fill{Source: domain.SourceNative, Input: big.NewInt(in), Output: big.NewInt(out), NativeOrder: resting}
}

func TestCompileBatchingToggle(t *testing.T) {
	path := domain.Path{
		bridgeFill(domain.SourceUniswap, 100, 99),
		bridgeFill(domain.SourceEth2Dai, 50, 49),
		nativeFill(30, 30),
		bridgeFill(domain.SourceKyber, 20, 19),
	}
	c := newTestCompiler(t, testAddresses())

	batched, err := c.Compile(path, sellOpts(true))
	require.NoError(t, err)
	require.Len(t, batched, 3)
	assert.Len(t, batched[0].Fills, 2)
	assert.Equal(t, testAddresses().DexForwarderBridge, batched[0].MakerAddress)
	assert.Equal(t, "native", batched[1].Kind())
	assert.Len(t, batched[2].Fills, 1)
	assert.Equal(t, testAddresses().DexForwarderBridge, batched[2].MakerAddress)

	unbatched, err := c.Compile(path, sellOpts(false))
	require.NoError(t, err)
	require.Len(t, unbatched, 4)
	wantMakers := []common.Address{
		testAddresses().UniswapBridge,
		nativeFill(30, 30).NativeOrder.MakerAddress,
		testAddresses().KyberBridge,
	}
	assert.Equal(t, wantMakers[0], unbatched[0].MakerAddress)
	assert.Equal(t, testAddresses().Eth2DaiBridge, unbatched[1].MakerAddress)
	assert.Equal(t, wantMakers[1], unbatched[2].MakerAddress)
	assert.Equal(t, wantMakers[2], unbatched[3].MakerAddress)
}

func TestCompileSameSourceRunCollapsesFirst(t *testing.T) {
	path := domain.Path{
		bridgeFill(domain.SourceUniswap, 100, 99),
		bridgeFill(domain.SourceUniswap, 50, 49),
		nativeFill(30, 30),
		bridgeFill(domain.SourceKyber, 20, 19),
	}
	c := newTestCompiler(t, testAddresses())

	for _, batch := range []bool{true, false} {
		got, err := c.Compile(path, sellOpts(batch))
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, big.NewInt(150), got[0].TakerAssetAmount)
		assert.Len(t, got[0].Fills[0].SubFills, 2)
	}
}

func TestCompileAmountConservation(t *testing.T) {
	run := domain.Path{
		bridgeFill(domain.SourceUniswap, 1_000_003, 997_001),
		bridgeFill(domain.SourceEth2Dai, 333_333, 331_111),
		bridgeFill(domain.SourceCurveUsdcDai, 77_777, 77_000),
	}
	for _, side := range []domain.Side{domain.SideSell, domain.SideBuy} {
		t.Run(string(side), func(t *testing.T) {
			opts := sellOpts(true)
			opts.Side = side
			opts.Slippage = decimal.RequireFromString("0.0137")

			got, err := newTestCompiler(t, testAddresses()).Compile(run, opts)
			require.NoError(t, err)
			require.Len(t, got, 1)

			wantMaker, wantTaker := new(big.Int), new(big.Int)
			for _, f := range run {
				m, tk := AdjustAmounts(f, side, opts.Slippage)
				wantMaker.Add(wantMaker, m)
				wantTaker.Add(wantTaker, tk)
			}
			assert.Equal(t, 0, wantMaker.Cmp(got[0].MakerAssetAmount))
			assert.Equal(t, 0, wantTaker.Cmp(got[0].TakerAssetAmount))
			assert.Equal(t, 0, wantMaker.Cmp(got[0].FillableMakerAssetAmount))

			decoded, err := assetdata.Decode(got[0].MakerAssetData)
			require.NoError(t, err)
			assert.Equal(t, testAddresses().DexForwarderBridge, decoded.Bridge)
			_, calls, err := assetdata.DecodeDexForwarderData(decoded.BridgeData)
			require.NoError(t, err)
			require.Len(t, calls, 3)
			assert.Equal(t, testAddresses().UniswapBridge, calls[0].Target)
			assert.Equal(t, testAddresses().CurveBridge, calls[2].Target)
		})
	}
}

func TestCompileNativePassthrough(t *testing.T) {
	nf := nativeFill(500, 400)
	opts := sellOpts(true)
	opts.Slippage = decimal.RequireFromString("0.5")

	got, err := newTestCompiler(t, testAddresses()).Compile(domain.Path{nf}, opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, nf.NativeOrder.SignedOrder, got[0].SignedOrder)
	assert.Equal(t, nf.NativeOrder.FillableMakerAssetAmount, got[0].FillableMakerAssetAmount)
	assert.Equal(t, "native", got[0].Kind())
}

func TestCompileDirectVenueNeverBatched(t *testing.T) {
	path := domain.Path{
		bridgeFill(domain.SourceUniswap, 10, 9),
		bridgeFill(domain.SourceLiquidityProvider, 10, 9),
		bridgeFill(domain.SourceKyber, 10, 9),
	}
	got, err := newTestCompiler(t, testAddresses()).Compile(path, sellOpts(true))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, testAddresses().LiquidityProvider, got[1].MakerAddress)
	assert.Equal(t, "direct", got[1].Kind())
}

func TestCompileBridgeOrderFields(t *testing.T) {
	got, err := newTestCompiler(t, testAddresses()).Compile(
		domain.Path{bridgeFill(domain.SourceUniswap, 1000, 1000)}, sellOpts(false))
	require.NoError(t, err)
	require.Len(t, got, 1)

	o := got[0]
	assert.Equal(t, big.NewInt(990), o.MakerAssetAmount)
	assert.Equal(t, big.NewInt(1000), o.TakerAssetAmount)
	assert.Equal(t, big.NewInt(fixedTime.Unix()+3600), o.ExpirationTimeSeconds)
	assert.Equal(t, big.NewInt(42), o.Salt)
	assert.Equal(t, []byte{0x04}, []byte(o.Signature))
	assert.Equal(t, int64(1), o.ChainID)
	assert.Equal(t, exchange, o.ExchangeAddress)
	assert.Equal(t, common.Address{}, o.TakerAddress)
	assert.Equal(t, common.Address{}, o.FeeRecipientAddress)
	assert.Equal(t, 0, o.FillableTakerFeeAmount.Sign())
	assert.Equal(t, assetdata.EncodeERC20(usdc), []byte(o.TakerAssetData))

	decoded, err := assetdata.Decode(o.MakerAssetData)
	require.NoError(t, err)
	assert.Equal(t, dai, decoded.Token)
	assert.Equal(t, testAddresses().UniswapBridge, decoded.Bridge)
	assert.Equal(t, assetdata.EncodeTokenBridgeData(usdc), decoded.BridgeData)
}

func TestCompileBuySideTokens(t *testing.T) {
	opts := sellOpts(false)
	opts.Side = domain.SideBuy
	// Buying USDC with DAI: maker token is the input token.
	opts.InputToken, opts.OutputToken = usdc, dai

	got, err := newTestCompiler(t, testAddresses()).Compile(
		domain.Path{bridgeFill(domain.SourceKyber, 1000, 1000)}, opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, big.NewInt(1000), got[0].MakerAssetAmount)
	assert.Equal(t, big.NewInt(1010), got[0].TakerAssetAmount)

	token, err := assetdata.TokenAddress(got[0].MakerAssetData)
	require.NoError(t, err)
	assert.Equal(t, usdc, token)
	assert.Equal(t, assetdata.EncodeERC20(dai), []byte(got[0].TakerAssetData))
}

func TestCompileErrors(t *testing.T) {
	noLP := testAddresses()
	noLP.LiquidityProvider = common.Address{}
	noForwarder := testAddresses()
	noForwarder.DexForwarderBridge = common.Address{}
	noKyber := testAddresses()
	noKyber.KyberBridge = common.Address{}

	tests := []struct {
		name    string
		addrs   venue.Addresses
		path    domain.Path
		opts    CompileOpts
		wantErr error
	}{
		{
			name:    "direct venue without address",
			addrs:   noLP,
			path:    domain.Path{bridgeFill(domain.SourceUniswap, 1, 1), bridgeFill(domain.SourceLiquidityProvider, 1, 1)},
			opts:    sellOpts(true),
			wantErr: domain.ErrMissingVenueAddress,
		},
		{
			name:    "unknown source",
			addrs:   testAddresses(),
			path:    domain.Path{bridgeFill(domain.Source("Balancer"), 1, 1)},
			opts:    sellOpts(true),
			wantErr: domain.ErrUnsupportedVenue,
		},
		{
			name:    "curve pool does not trade pair",
			addrs:   testAddresses(),
			path:    domain.Path{bridgeFill(domain.SourceCurveUsdcDai, 1, 1)},
			opts:    func() CompileOpts { o := sellOpts(false); o.OutputToken = common.HexToAddress("0xdead"); return o }(),
			wantErr: domain.ErrUnsupportedVenue,
		},
		{
			name:    "batching without forwarder",
			addrs:   noForwarder,
			path:    domain.Path{bridgeFill(domain.SourceUniswap, 1, 1)},
			opts:    sellOpts(true),
			wantErr: domain.ErrUnsupportedVenue,
		},
		{
			name:    "bridge venue not deployed",
			addrs:   noKyber,
			path:    domain.Path{bridgeFill(domain.SourceKyber, 10, 20)},
			opts:    sellOpts(false),
			wantErr: domain.ErrUnsupportedVenue,
		},
		{
			name:    "empty path",
			addrs:   testAddresses(),
			path:    nil,
			opts:    sellOpts(true),
			wantErr: domain.ErrEmptyPath,
		},
		{
			name:    "tolerance out of range",
			addrs:   testAddresses(),
			path:    domain.Path{bridgeFill(domain.SourceUniswap, 1, 1)},
			opts:    func() CompileOpts { o := sellOpts(true); o.Slippage = decimal.NewFromInt(1); return o }(),
			wantErr: domain.ErrInvalidSlippage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTestCompiler(t, tt.addrs).Compile(tt.path, tt.opts)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestCompileLiquidityProviderOverride(t *testing.T) {
	noLP := testAddresses()
	noLP.LiquidityProvider = common.Address{}
	opts := sellOpts(true)
	opts.LiquidityProviderAddress = common.HexToAddress("0x00000000000000000000000000000000000000cc")

	got, err := newTestCompiler(t, noLP).Compile(domain.Path{bridgeFill(domain.SourceLiquidityProvider, 5, 5)}, opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, opts.LiquidityProviderAddress, got[0].MakerAddress)
}

func TestCompileCollapsedPathIsStable(t *testing.T) {
	path := domain.Path{
		bridgeFill(domain.SourceUniswap, 10, 9),
		bridgeFill(domain.SourceUniswap, 11, 10),
		nativeFill(3, 3),
		bridgeFill(domain.SourceKyber, 4, 4),
		bridgeFill(domain.SourceKyber, 4, 4),
	}
	c := newTestCompiler(t, testAddresses())
	for _, batch := range []bool{true, false} {
		first, err := c.Compile(path, sellOpts(batch))
		require.NoError(t, err)

		var recollapsed domain.Path
		for _, o := range first {
			recollapsed = append(recollapsed, o.Fills...)
		}
		second, err := c.Compile(recollapsed, sellOpts(batch))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}
