package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Side is the market operation a path is compiled for.
type Side string

const (
	// SideSell sells a fixed input amount; the output amount floats.
	SideSell Side = "sell"
	// SideBuy buys a fixed output amount; the input amount floats.
	SideBuy Side = "buy"
)

// ParseSide parses a case-sensitive side name.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideSell, SideBuy:
		return Side(s), nil
	}
	return "", fmt.Errorf("domain: unknown side %q", s)
}

// SignedOrder carries the fields of an exchange order as signed by its maker.
type SignedOrder struct {
	ChainID               int64          `json:"chainId"`
	ExchangeAddress       common.Address `json:"exchangeAddress"`
	MakerAddress          common.Address `json:"makerAddress"`
	TakerAddress          common.Address `json:"takerAddress"`
	FeeRecipientAddress   common.Address `json:"feeRecipientAddress"`
	SenderAddress         common.Address `json:"senderAddress"`
	MakerAssetAmount      *big.Int       `json:"makerAssetAmount"`
	TakerAssetAmount      *big.Int       `json:"takerAssetAmount"`
	MakerFee              *big.Int       `json:"makerFee"`
	TakerFee              *big.Int       `json:"takerFee"`
	ExpirationTimeSeconds *big.Int       `json:"expirationTimeSeconds"`
	Salt                  *big.Int       `json:"salt"`
	MakerAssetData        hexutil.Bytes  `json:"makerAssetData"`
	TakerAssetData        hexutil.Bytes  `json:"takerAssetData"`
	MakerFeeAssetData     hexutil.Bytes  `json:"makerFeeAssetData"`
	TakerFeeAssetData     hexutil.Bytes  `json:"takerFeeAssetData"`
	Signature             hexutil.Bytes  `json:"signature"`
}

// FillableOrder is a signed order annotated with how much of it can still be
// filled on chain.
type FillableOrder struct {
	SignedOrder
	FillableMakerAssetAmount *big.Int `json:"fillableMakerAssetAmount"`
	FillableTakerAssetAmount *big.Int `json:"fillableTakerAssetAmount"`
	FillableTakerFeeAmount   *big.Int `json:"fillableTakerFeeAmount"`
}

// SettlementOrder is one order submitted for settlement together with the
// contiguous run of path fills it covers.
type SettlementOrder struct {
	FillableOrder
	Fills []Fill `json:"fills"`
}

// Kind classifies a compiled order for metrics and persistence.
func (o SettlementOrder) Kind() string {
	if len(o.Fills) == 0 {
		return "empty"
	}
	switch src := o.Fills[0].Source; {
	case src.IsNative():
		return "native"
	case src.IsDirect():
		return "direct"
	case len(o.Fills) > 1:
		return "batched"
	default:
		return "bridge"
	}
}

// OrderDomain identifies the exchange deployment orders are signed against.
type OrderDomain struct {
	ChainID         int64          `json:"chainId"`
	ExchangeAddress common.Address `json:"exchangeAddress"`
}
