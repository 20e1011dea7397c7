package domain

import (
	"fmt"
	"math/big"
)

// Source identifies the venue a fill is sourced from.
type Source string

const (
	SourceNative               Source = "Native"
	SourceEth2Dai              Source = "Eth2Dai"
	SourceKyber                Source = "Kyber"
	SourceUniswap              Source = "Uniswap"
	SourceCurveUsdcDai         Source = "Curve_USDC_DAI"
	SourceCurveUsdcDaiUsdt     Source = "Curve_USDC_DAI_USDT"
	SourceCurveUsdcDaiUsdtTusd Source = "Curve_USDC_DAI_USDT_TUSD"
	SourceCurveUsdcDaiUsdtBusd Source = "Curve_USDC_DAI_USDT_BUSD"
	// SourceLiquidityProvider is a direct venue: its orders are always
	// settled individually.
	SourceLiquidityProvider Source = "LiquidityProvider"
)

var allSources = []Source{
	SourceNative,
	SourceEth2Dai,
	SourceKyber,
	SourceUniswap,
	SourceCurveUsdcDai,
	SourceCurveUsdcDaiUsdt,
	SourceCurveUsdcDaiUsdtTusd,
	SourceCurveUsdcDaiUsdtBusd,
	SourceLiquidityProvider,
}

// Sources returns every known source in declaration order.
func Sources() []Source {
	out := make([]Source, len(allSources))
	copy(out, allSources)
	return out
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	for _, known := range allSources {
		if s == known {
			return true
		}
	}
	return false
}

// IsNative reports whether fills from s consume resting signed orders.
func (s Source) IsNative() bool { return s == SourceNative }

// IsDirect reports whether s must be called directly rather than batched.
func (s Source) IsDirect() bool { return s == SourceLiquidityProvider }

// IsCurve reports whether s is one of the curve stable pools.
func (s Source) IsCurve() bool {
	switch s {
	case SourceCurveUsdcDai, SourceCurveUsdcDaiUsdt, SourceCurveUsdcDaiUsdtTusd, SourceCurveUsdcDaiUsdtBusd:
		return true
	}
	return false
}

// Fill is one chunk of an input amount routed through a single source.
type Fill struct {
	Source Source   `json:"source"`
	Input  *big.Int `json:"input"`
	Output *big.Int `json:"output"`
	// NativeOrder is the resting order consumed by a native fill.
	NativeOrder *FillableOrder `json:"nativeOrder,omitempty"`
	// SubFills holds the original fills merged into this one by collapsing.
	SubFills []Fill `json:"subFills,omitempty"`
}

// Validate checks the structural invariants a fill must hold before it is
// compiled.
func (f Fill) Validate() error {
	if !f.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrUnsupportedVenue, f.Source)
	}
	if f.Input == nil || f.Input.Sign() <= 0 {
		return fmt.Errorf("%w: %s fill input must be positive", ErrInvalidFill, f.Source)
	}
	if f.Output == nil || f.Output.Sign() <= 0 {
		return fmt.Errorf("%w: %s fill output must be positive", ErrInvalidFill, f.Source)
	}
	if f.Source.IsNative() && f.NativeOrder == nil {
		return fmt.Errorf("%w: native fill without a resting order", ErrInvalidFill)
	}
	return nil
}

// Path is an ordered sequence of fills selected by the router.
type Path []Fill

// TotalInput sums the input of every fill.
func (p Path) TotalInput() *big.Int {
	total := new(big.Int)
	for _, f := range p {
		if f.Input != nil {
			total.Add(total, f.Input)
		}
	}
	return total
}

// TotalOutput sums the output of every fill.
func (p Path) TotalOutput() *big.Int {
	total := new(big.Int)
	for _, f := range p {
		if f.Output != nil {
			total.Add(total, f.Output)
		}
	}
	return total
}
