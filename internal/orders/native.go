package orders

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/swaprouter/internal/assetdata"
	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// NativeOrderTokens returns the lower-cased maker and taker token addresses
// of a resting order. Both sides must be plain ERC20 asset data.
func NativeOrderTokens(o domain.SignedOrder) (maker, taker string, err error) {
	tokens := make([]string, 0, 2)
	for _, data := range [][]byte{o.MakerAssetData, o.TakerAssetData} {
		d, err := assetdata.Decode(data)
		if err != nil {
			return "", "", fmt.Errorf("orders: native order tokens: %w", err)
		}
		if !bytes.Equal(d.ProxyID, assetdata.ERC20ProxyID) {
			return "", "", fmt.Errorf("orders: native order tokens: %w", domain.ErrNotERC20AssetData)
		}
		tokens = append(tokens, strings.ToLower(d.Token.Hex()))
	}
	return tokens[0], tokens[1], nil
}

// WithFillableAmounts attaches fillable amounts to resting orders and drops
// the ones that cannot be filled at all. fillable[i] is in taker units on a
// sell and maker units on a buy.
func WithFillableAmounts(side domain.Side, signed []domain.SignedOrder, fillable []*big.Int) ([]domain.FillableOrder, error) {
	if len(signed) != len(fillable) {
		return nil, fmt.Errorf("orders: fillable amounts: %d orders, %d amounts", len(signed), len(fillable))
	}
	out := make([]domain.FillableOrder, 0, len(signed))
	for i, o := range signed {
		var makerFill, takerFill *big.Int
		if side == domain.SideSell {
			takerFill = new(big.Int).Set(fillable[i])
			makerFill = mulDivFloor(takerFill, o.MakerAssetAmount, o.TakerAssetAmount)
		} else {
			makerFill = new(big.Int).Set(fillable[i])
			takerFill = mulDivCeil(makerFill, o.TakerAssetAmount, o.MakerAssetAmount)
		}
		if makerFill.Sign() == 0 || takerFill.Sign() == 0 {
			continue
		}
		out = append(out, domain.FillableOrder{
			SignedOrder:              o,
			FillableMakerAssetAmount: makerFill,
			FillableTakerAssetAmount: takerFill,
			FillableTakerFeeAmount:   mulDivCeil(takerFill, o.TakerFee, o.TakerAssetAmount),
		})
	}
	return out, nil
}

// FullyFillable treats a resting order as untouched.
func FullyFillable(o domain.SignedOrder) domain.FillableOrder {
	return domain.FillableOrder{
		SignedOrder:              o,
		FillableMakerAssetAmount: orZero(o.MakerAssetAmount),
		FillableTakerAssetAmount: orZero(o.TakerAssetAmount),
		FillableTakerFeeAmount:   orZero(o.TakerFee),
	}
}

// DummySamplerOrder returns a zero-valued order used to query on-chain
// samplers for a token pair.
func DummySamplerOrder(makerAssetData, takerAssetData []byte, maker common.Address) domain.SignedOrder {
	return domain.SignedOrder{
		ChainID:               1,
		MakerAddress:          maker,
		MakerAssetAmount:      new(big.Int),
		TakerAssetAmount:      new(big.Int),
		MakerFee:              new(big.Int),
		TakerFee:              new(big.Int),
		ExpirationTimeSeconds: new(big.Int),
		Salt:                  new(big.Int),
		MakerAssetData:        makerAssetData,
		TakerAssetData:        takerAssetData,
		MakerFeeAssetData:     []byte{},
		TakerFeeAssetData:     []byte{},
		Signature:             []byte{},
	}
}

func mulDivFloor(x, num, den *big.Int) *big.Int {
	if num == nil || den == nil || den.Sign() == 0 {
		return new(big.Int)
	}
	p := new(big.Int).Mul(x, num)
	return p.Quo(p, den)
}

func mulDivCeil(x, num, den *big.Int) *big.Int {
	if num == nil || den == nil || den.Sign() == 0 {
		return new(big.Int)
	}
	p := new(big.Int).Mul(x, num)
	q, r := new(big.Int).QuoRem(p, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}
