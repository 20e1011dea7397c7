package venue

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swaprouter/internal/assetdata"
	"github.com/alanyoungcy/swaprouter/internal/domain"
)

func testAddresses() Addresses {
	return Addresses{
		Eth2DaiBridge:      common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		KyberBridge:        common.HexToAddress("0x00000000000000000000000000000000000000e2"),
		UniswapBridge:      common.HexToAddress("0x00000000000000000000000000000000000000e3"),
		CurveBridge:        common.HexToAddress("0x00000000000000000000000000000000000000e4"),
		DexForwarderBridge: common.HexToAddress("0x00000000000000000000000000000000000000e5"),
	}
}

func TestBridgeAddress(t *testing.T) {
	r := NewRegistry(testAddresses(), nil)

	tests := []struct {
		name    string
		src     domain.Source
		want    common.Address
		wantErr error
	}{
		{name: "uniswap", src: domain.SourceUniswap, want: testAddresses().UniswapBridge},
		{name: "curve shares one bridge", src: domain.SourceCurveUsdcDaiUsdtBusd, want: testAddresses().CurveBridge},
		{name: "native has no bridge", src: domain.SourceNative, wantErr: domain.ErrUnsupportedVenue},
		{name: "unknown source", src: domain.Source("Balancer"), wantErr: domain.ErrUnsupportedVenue},
		{name: "direct venue without address", src: domain.SourceLiquidityProvider, wantErr: domain.ErrMissingVenueAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.BridgeAddress(tt.src)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithLiquidityProviderCopies(t *testing.T) {
	base := NewRegistry(testAddresses(), nil)
	lp := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	withLP := base.WithLiquidityProvider(lp)
	got, err := withLP.BridgeAddress(domain.SourceLiquidityProvider)
	require.NoError(t, err)
	assert.Equal(t, lp, got)

	_, err = base.BridgeAddress(domain.SourceLiquidityProvider)
	require.ErrorIs(t, err, domain.ErrMissingVenueAddress)
}

func TestUndeployedBridgeIsUnsupported(t *testing.T) {
	addrs := testAddresses()
	addrs.KyberBridge = common.Address{}
	addrs.DexForwarderBridge = common.Address{}
	r := NewRegistry(addrs, nil)

	_, err := r.BridgeAddress(domain.SourceKyber)
	require.ErrorIs(t, err, domain.ErrUnsupportedVenue)
	assert.NotErrorIs(t, err, domain.ErrMissingVenueAddress)

	_, err = r.DexForwarder()
	require.ErrorIs(t, err, domain.ErrUnsupportedVenue)
	assert.NotErrorIs(t, err, domain.ErrMissingVenueAddress)

	// The direct venue keeps its own error so callers can tell them apart.
	_, err = r.BridgeAddress(domain.SourceLiquidityProvider)
	require.ErrorIs(t, err, domain.ErrMissingVenueAddress)
	assert.NotErrorIs(t, err, domain.ErrUnsupportedVenue)
}

func TestCurveBridgeData(t *testing.T) {
	r := NewRegistry(testAddresses(), nil)

	// Selling USDC (index 1) for DAI (index 0).
	data, err := r.BridgeData(domain.SourceCurveUsdcDai, tokenDAI, tokenUSDC)
	require.NoError(t, err)
	want, err := assetdata.EncodeCurveBridgeData(
		common.HexToAddress("0x845838df265dcd2c412a1dc9e959c7d08537f8a2"), 1, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, want, data)

	_, err = r.BridgeData(domain.SourceCurveUsdcDai, tokenDAI, tokenUSDT)
	require.ErrorIs(t, err, domain.ErrUnsupportedVenue)
}

func TestTokenBridgeData(t *testing.T) {
	r := NewRegistry(testAddresses(), nil)
	addr, data, err := r.Payload(domain.SourceEth2Dai, tokenDAI, tokenUSDC)
	require.NoError(t, err)
	assert.Equal(t, testAddresses().Eth2DaiBridge, addr)
	assert.Equal(t, assetdata.EncodeTokenBridgeData(tokenUSDC), data)
}
