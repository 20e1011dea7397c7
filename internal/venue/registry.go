// Package venue maps fill sources to the on-chain contracts that settle them.
package venue

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/swaprouter/internal/assetdata"
	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// CurvePool describes a curve stable pool and the coin order it expects.
type CurvePool struct {
	Pool    common.Address
	Tokens  []common.Address
	Version int
}

// IndexOf returns the coin index of token in the pool, or -1.
func (p CurvePool) IndexOf(token common.Address) int {
	for i, t := range p.Tokens {
		if t == token {
			return i
		}
	}
	return -1
}

var (
	tokenDAI  = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	tokenUSDC = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	tokenUSDT = common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7")
	tokenTUSD = common.HexToAddress("0x0000000000085d4780b73119b644ae5ecd22b376")
	tokenBUSD = common.HexToAddress("0x4fabb145d64652a948d72533023f6e7a623c7c53")
)

// DefaultCurvePools returns the mainnet curve pools.
func DefaultCurvePools() map[domain.Source]CurvePool {
	return map[domain.Source]CurvePool{
		domain.SourceCurveUsdcDai: {
			Pool:    common.HexToAddress("0x845838df265dcd2c412a1dc9e959c7d08537f8a2"),
			Tokens:  []common.Address{tokenDAI, tokenUSDC},
			Version: 1,
		},
		domain.SourceCurveUsdcDaiUsdt: {
			Pool:    common.HexToAddress("0x52ea46506b9cc5ef470c5bf89f17dc28bb35d85c"),
			Tokens:  []common.Address{tokenDAI, tokenUSDC, tokenUSDT},
			Version: 1,
		},
		domain.SourceCurveUsdcDaiUsdtTusd: {
			Pool:    common.HexToAddress("0x45f783cce6b7ff23b2ab2d70e416cdb7d6055f51"),
			Tokens:  []common.Address{tokenDAI, tokenUSDC, tokenUSDT, tokenTUSD},
			Version: 1,
		},
		domain.SourceCurveUsdcDaiUsdtBusd: {
			Pool:    common.HexToAddress("0x79a8c46dea5ada233abaffd40f3a0a2b1e5a4f27"),
			Tokens:  []common.Address{tokenDAI, tokenUSDC, tokenUSDT, tokenBUSD},
			Version: 1,
		},
	}
}

// Addresses holds the bridge contracts of one deployment. A zero address
// means the venue is not deployed there.
type Addresses struct {
	Eth2DaiBridge      common.Address
	KyberBridge        common.Address
	UniswapBridge      common.Address
	CurveBridge        common.Address
	DexForwarderBridge common.Address
	LiquidityProvider  common.Address
}

// Registry resolves sources to bridge addresses and bridge payloads. It is
// immutable; With* methods return modified copies.
type Registry struct {
	addrs  Addresses
	curves map[domain.Source]CurvePool
}

// NewRegistry creates a Registry. A nil curves map selects DefaultCurvePools.
func NewRegistry(addrs Addresses, curves map[domain.Source]CurvePool) *Registry {
	if curves == nil {
		curves = DefaultCurvePools()
	}
	return &Registry{addrs: addrs, curves: curves}
}

// WithLiquidityProvider returns a copy of r that routes the direct venue to
// addr.
func (r *Registry) WithLiquidityProvider(addr common.Address) *Registry {
	cp := *r
	cp.addrs.LiquidityProvider = addr
	return &cp
}

// Addresses returns the configured bridge contracts.
func (r *Registry) Addresses() Addresses { return r.addrs }

// BridgeAddress returns the contract that settles fills from src. A bridge
// venue without an address is not deployed and fails with
// domain.ErrUnsupportedVenue; only the direct venue reports
// domain.ErrMissingVenueAddress.
func (r *Registry) BridgeAddress(src domain.Source) (common.Address, error) {
	var addr common.Address
	switch {
	case src == domain.SourceEth2Dai:
		addr = r.addrs.Eth2DaiBridge
	case src == domain.SourceKyber:
		addr = r.addrs.KyberBridge
	case src == domain.SourceUniswap:
		addr = r.addrs.UniswapBridge
	case src.IsCurve():
		addr = r.addrs.CurveBridge
	case src == domain.SourceLiquidityProvider:
		if r.addrs.LiquidityProvider == (common.Address{}) {
			return common.Address{}, fmt.Errorf("%w: %s", domain.ErrMissingVenueAddress, src)
		}
		return r.addrs.LiquidityProvider, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %q has no bridge", domain.ErrUnsupportedVenue, src)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no %s bridge configured", domain.ErrUnsupportedVenue, src)
	}
	return addr, nil
}

// DexForwarder returns the bridge that executes batched multi-call orders.
// It is a bridge venue like any other, so a missing address is
// domain.ErrUnsupportedVenue.
func (r *Registry) DexForwarder() (common.Address, error) {
	if r.addrs.DexForwarderBridge == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no dex forwarder bridge configured", domain.ErrUnsupportedVenue)
	}
	return r.addrs.DexForwarderBridge, nil
}

// BridgeData returns the payload the bridge for src needs to buy makerToken
// with takerToken.
func (r *Registry) BridgeData(src domain.Source, makerToken, takerToken common.Address) ([]byte, error) {
	if !src.IsCurve() {
		if src.IsNative() || !src.Valid() {
			return nil, fmt.Errorf("%w: %q has no bridge data", domain.ErrUnsupportedVenue, src)
		}
		return assetdata.EncodeTokenBridgeData(takerToken), nil
	}
	pool, ok := r.curves[src]
	if !ok {
		return nil, fmt.Errorf("%w: no curve pool for %s", domain.ErrUnsupportedVenue, src)
	}
	from, to := pool.IndexOf(takerToken), pool.IndexOf(makerToken)
	if from < 0 || to < 0 {
		return nil, fmt.Errorf("%w: %s does not trade %s for %s",
			domain.ErrUnsupportedVenue, src, takerToken.Hex(), makerToken.Hex())
	}
	return assetdata.EncodeCurveBridgeData(pool.Pool, from, to, pool.Version)
}

// Payload resolves both the bridge address and the bridge data for src.
func (r *Registry) Payload(src domain.Source, makerToken, takerToken common.Address) (common.Address, []byte, error) {
	addr, err := r.BridgeAddress(src)
	if err != nil {
		return common.Address{}, nil, err
	}
	data, err := r.BridgeData(src, makerToken, takerToken)
	if err != nil {
		return common.Address{}, nil, err
	}
	return addr, data, nil
}
