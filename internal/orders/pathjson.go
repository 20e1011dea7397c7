package orders

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// OrderJSON is a signed order in its wire form: integers as decimal strings
// (JSON numbers are accepted too) and byte fields as 0x hex.
type OrderJSON struct {
	ChainID               int64       `json:"chainId"`
	ExchangeAddress       string      `json:"exchangeAddress"`
	MakerAddress          string      `json:"makerAddress"`
	TakerAddress          string      `json:"takerAddress"`
	FeeRecipientAddress   string      `json:"feeRecipientAddress"`
	SenderAddress         string      `json:"senderAddress"`
	MakerAssetAmount      json.Number `json:"makerAssetAmount"`
	TakerAssetAmount      json.Number `json:"takerAssetAmount"`
	MakerFee              json.Number `json:"makerFee"`
	TakerFee              json.Number `json:"takerFee"`
	ExpirationTimeSeconds json.Number `json:"expirationTimeSeconds"`
	Salt                  json.Number `json:"salt"`
	MakerAssetData        string      `json:"makerAssetData"`
	TakerAssetData        string      `json:"takerAssetData"`
	MakerFeeAssetData     string      `json:"makerFeeAssetData"`
	TakerFeeAssetData     string      `json:"takerFeeAssetData"`
	Signature             string      `json:"signature"`

	// Set on resting orders consumed by native fills. A missing amount
	// means the order is fully fillable.
	FillableMakerAssetAmount json.Number `json:"fillableMakerAssetAmount,omitempty"`
	FillableTakerAssetAmount json.Number `json:"fillableTakerAssetAmount,omitempty"`
	FillableTakerFeeAmount   json.Number `json:"fillableTakerFeeAmount,omitempty"`
}

// FillJSON is one path fill in wire form.
type FillJSON struct {
	Source      string      `json:"source"`
	Input       json.Number `json:"input"`
	Output      json.Number `json:"output"`
	NativeOrder *OrderJSON  `json:"nativeOrder,omitempty"`
	SubFills    []FillJSON  `json:"subFills,omitempty"`
}

// ParsePath decodes a JSON array of fills.
func ParsePath(data []byte) (domain.Path, error) {
	var raw []FillJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("orders: decode path: %w", err)
	}
	return PathFromJSON(raw)
}

// PathFromJSON converts wire fills into a path. Fills are not validated
// beyond parsing; the compiler does that.
func PathFromJSON(raw []FillJSON) (domain.Path, error) {
	path := make(domain.Path, 0, len(raw))
	for i, f := range raw {
		fill, err := f.Fill()
		if err != nil {
			return nil, fmt.Errorf("orders: fill %d: %w", i, err)
		}
		path = append(path, fill)
	}
	return path, nil
}

// Fill converts f into a domain fill.
func (f FillJSON) Fill() (domain.Fill, error) {
	input, err := parseUint(f.Input, "input")
	if err != nil {
		return domain.Fill{}, err
	}
	output, err := parseUint(f.Output, "output")
	if err != nil {
		return domain.Fill{}, err
	}
	fill := domain.Fill{
		Source: domain.Source(f.Source),
		Input:  input,
		Output: output,
	}
	if f.NativeOrder != nil {
		o, err := f.NativeOrder.FillableOrder()
		if err != nil {
			return domain.Fill{}, fmt.Errorf("native order: %w", err)
		}
		fill.NativeOrder = &o
	}
	for _, sub := range f.SubFills {
		sf, err := sub.Fill()
		if err != nil {
			return domain.Fill{}, fmt.Errorf("sub fill: %w", err)
		}
		fill.SubFills = append(fill.SubFills, sf)
	}
	return fill, nil
}

// SignedOrder converts o into a domain order. Every integer field is
// required.
func (o OrderJSON) SignedOrder() (domain.SignedOrder, error) {
	var so domain.SignedOrder
	ints := []intField{
		{"makerAssetAmount", o.MakerAssetAmount, &so.MakerAssetAmount},
		{"takerAssetAmount", o.TakerAssetAmount, &so.TakerAssetAmount},
		{"makerFee", o.MakerFee, &so.MakerFee},
		{"takerFee", o.TakerFee, &so.TakerFee},
		{"expirationTimeSeconds", o.ExpirationTimeSeconds, &so.ExpirationTimeSeconds},
		{"salt", o.Salt, &so.Salt},
	}
	for _, f := range ints {
		n, err := parseUint(f.raw, f.name)
		if err != nil {
			return domain.SignedOrder{}, err
		}
		*f.dst = n
	}

	addrs := []struct {
		name string
		raw  string
		dst  *common.Address
	}{
		{"exchangeAddress", o.ExchangeAddress, &so.ExchangeAddress},
		{"makerAddress", o.MakerAddress, &so.MakerAddress},
		{"takerAddress", o.TakerAddress, &so.TakerAddress},
		{"feeRecipientAddress", o.FeeRecipientAddress, &so.FeeRecipientAddress},
		{"senderAddress", o.SenderAddress, &so.SenderAddress},
	}
	for _, a := range addrs {
		if a.raw == "" {
			continue
		}
		if !common.IsHexAddress(a.raw) {
			return domain.SignedOrder{}, fmt.Errorf("%s: invalid address %q", a.name, a.raw)
		}
		*a.dst = common.HexToAddress(a.raw)
	}

	blobs := []struct {
		name string
		raw  string
		dst  *hexutil.Bytes
	}{
		{"makerAssetData", o.MakerAssetData, &so.MakerAssetData},
		{"takerAssetData", o.TakerAssetData, &so.TakerAssetData},
		{"makerFeeAssetData", o.MakerFeeAssetData, &so.MakerFeeAssetData},
		{"takerFeeAssetData", o.TakerFeeAssetData, &so.TakerFeeAssetData},
		{"signature", o.Signature, &so.Signature},
	}
	for _, b := range blobs {
		if b.raw == "" {
			*b.dst = hexutil.Bytes{}
			continue
		}
		data, err := hexutil.Decode(b.raw)
		if err != nil {
			return domain.SignedOrder{}, fmt.Errorf("%s: %w", b.name, err)
		}
		*b.dst = data
	}

	so.ChainID = o.ChainID
	return so, nil
}

// FillableOrder converts o into a fillable order. Missing fillable amounts
// default to the order's full amounts.
func (o OrderJSON) FillableOrder() (domain.FillableOrder, error) {
	so, err := o.SignedOrder()
	if err != nil {
		return domain.FillableOrder{}, err
	}
	fo := FullyFillable(so)
	for _, f := range []intField{
		{"fillableMakerAssetAmount", o.FillableMakerAssetAmount, &fo.FillableMakerAssetAmount},
		{"fillableTakerAssetAmount", o.FillableTakerAssetAmount, &fo.FillableTakerAssetAmount},
		{"fillableTakerFeeAmount", o.FillableTakerFeeAmount, &fo.FillableTakerFeeAmount},
	} {
		if f.raw == "" {
			continue
		}
		n, err := parseUint(f.raw, f.name)
		if err != nil {
			return domain.FillableOrder{}, err
		}
		*f.dst = n
	}
	return fo, nil
}

type intField struct {
	name string
	raw  json.Number
	dst  **big.Int
}

// parseUint parses a non-negative base-10 integer.
func parseUint(raw json.Number, name string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("%s: missing", name)
	}
	n, ok := new(big.Int).SetString(raw.String(), 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%s: not a non-negative integer: %q", name, raw)
	}
	return n, nil
}
