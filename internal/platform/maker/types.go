package maker

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// flexNumber unmarshals a JSON string or a JSON number into its literal
// text, so integer fields survive whether a maker quotes them or not.
type flexNumber string

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("maker: expected string or number, got %s", data)
	}
	*f = flexNumber(n.String())
	return nil
}

func (f flexNumber) String() string { return string(f) }

// --------------------------------------------------------------------------
// Firm quote DTO
// --------------------------------------------------------------------------

// APIFirmQuote is the signed order a market maker returns from /quote.
// Validation tags are checked before the quote is trusted.
type APIFirmQuote struct {
	ChainID               int64      `json:"chainId" validate:"gt=0"`
	ExchangeAddress       string     `json:"exchangeAddress" validate:"required,eth_addr"`
	MakerAddress          string     `json:"makerAddress" validate:"required,eth_addr"`
	TakerAddress          string     `json:"takerAddress" validate:"required,eth_addr"`
	FeeRecipientAddress   string     `json:"feeRecipientAddress" validate:"required,eth_addr"`
	SenderAddress         string     `json:"senderAddress" validate:"required,eth_addr"`
	MakerAssetAmount      flexNumber `json:"makerAssetAmount" validate:"required,wholenum"`
	TakerAssetAmount      flexNumber `json:"takerAssetAmount" validate:"required,wholenum"`
	MakerFee              flexNumber `json:"makerFee" validate:"required,wholenum"`
	TakerFee              flexNumber `json:"takerFee" validate:"required,wholenum"`
	ExpirationTimeSeconds flexNumber `json:"expirationTimeSeconds" validate:"required,wholenum"`
	Salt                  flexNumber `json:"salt" validate:"required,wholenum"`
	MakerAssetData        string     `json:"makerAssetData" validate:"required,hexbytes"`
	TakerAssetData        string     `json:"takerAssetData" validate:"required,hexbytes"`
	MakerFeeAssetData     string     `json:"makerFeeAssetData" validate:"required,hexbytes"`
	TakerFeeAssetData     string     `json:"takerFeeAssetData" validate:"required,hexbytes"`
	Signature             string     `json:"signature" validate:"required,hexbytes"`
}
