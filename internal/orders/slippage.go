package orders

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

var one = decimal.NewFromInt(1)

// ParseSlippage parses a tolerance such as "0.005" and checks that it lies
// in [0, 1).
func ParseSlippage(s string) (decimal.Decimal, error) {
	tol, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", domain.ErrInvalidSlippage, s, err)
	}
	if err := validateSlippage(tol); err != nil {
		return decimal.Zero, err
	}
	return tol, nil
}

func validateSlippage(tol decimal.Decimal) error {
	if tol.IsNegative() || tol.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: %s not in [0, 1)", domain.ErrInvalidSlippage, tol.String())
	}
	return nil
}

// AdjustAmounts returns the maker and taker amounts of a bridge order for f
// after applying tol against the side that floats. On a sell the maker amount
// (what we receive) is lowered and rounded down; on a buy the taker amount
// (what we pay) is raised and rounded up. The fixed side passes through.
func AdjustAmounts(f domain.Fill, side domain.Side, tol decimal.Decimal) (maker, taker *big.Int) {
	out := decimal.NewFromBigInt(f.Output, 0)
	if side == domain.SideSell {
		return out.Mul(one.Sub(tol)).Floor().BigInt(), new(big.Int).Set(f.Input)
	}
	return new(big.Int).Set(f.Input), out.Mul(one.Add(tol)).Ceil().BigInt()
}
