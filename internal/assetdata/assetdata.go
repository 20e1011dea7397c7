// Package assetdata encodes and decodes exchange asset data and the bridge
// payloads carried inside it.
package assetdata

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// Proxy ids prefix asset data and select the asset proxy that moves it.
var (
	ERC20ProxyID       = []byte{0xf4, 0x72, 0x61, 0xb0}
	ERC20BridgeProxyID = []byte{0xdc, 0x16, 0x00, 0xf3}
)

var (
	addressType = mustType("address", nil)
	bytesType   = mustType("bytes", nil)
	int128Type  = mustType("int128", nil)
	callsType   = mustType("tuple[]", []abi.ArgumentMarshaling{
		{Name: "target", Type: "address"},
		{Name: "inputTokenAmount", Type: "uint256"},
		{Name: "outputTokenAmount", Type: "uint256"},
		{Name: "bridgeData", Type: "bytes"},
	})

	erc20Args       = abi.Arguments{{Type: addressType}}
	erc20BridgeArgs = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: bytesType}}
	tokenBridgeArgs = abi.Arguments{{Type: addressType}}
	curveArgs       = abi.Arguments{{Type: addressType}, {Type: int128Type}, {Type: int128Type}, {Type: int128Type}}
	forwarderArgs   = abi.Arguments{{Type: addressType}, {Type: callsType}}
)

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Sprintf("assetdata: abi type %s: %v", t, err))
	}
	return typ
}

// DexCall is one leg of a batched dex-forwarder order.
type DexCall struct {
	Target            common.Address
	InputTokenAmount  *big.Int
	OutputTokenAmount *big.Int
	BridgeData        []byte
}

// Decoded is the parsed form of ERC20 or ERC20Bridge asset data.
type Decoded struct {
	ProxyID    []byte
	Token      common.Address
	Bridge     common.Address
	BridgeData []byte
}

// IsBridge reports whether the asset data routes through a bridge contract.
func (d Decoded) IsBridge() bool { return bytes.Equal(d.ProxyID, ERC20BridgeProxyID) }

// EncodeERC20 returns the asset data for a plain ERC20 token.
func EncodeERC20(token common.Address) []byte {
	packed, err := erc20Args.Pack(token)
	if err != nil {
		panic(fmt.Sprintf("assetdata: pack erc20: %v", err))
	}
	return concat(ERC20ProxyID, packed)
}

// EncodeERC20Bridge returns asset data that asks the bridge contract to
// produce token, passing bridgeData through.
func EncodeERC20Bridge(token, bridge common.Address, bridgeData []byte) []byte {
	if bridgeData == nil {
		bridgeData = []byte{}
	}
	packed, err := erc20BridgeArgs.Pack(token, bridge, bridgeData)
	if err != nil {
		panic(fmt.Sprintf("assetdata: pack erc20 bridge: %v", err))
	}
	return concat(ERC20BridgeProxyID, packed)
}

// EncodeTokenBridgeData returns the bridge data understood by single-hop
// bridges: the token they pull from the taker.
func EncodeTokenBridgeData(takerToken common.Address) []byte {
	packed, err := tokenBridgeArgs.Pack(takerToken)
	if err != nil {
		panic(fmt.Sprintf("assetdata: pack token bridge data: %v", err))
	}
	return packed
}

// EncodeCurveBridgeData returns the bridge data for a curve pool swap between
// the coins at fromIdx and toIdx.
func EncodeCurveBridgeData(pool common.Address, fromIdx, toIdx, version int) ([]byte, error) {
	packed, err := curveArgs.Pack(pool, big.NewInt(int64(fromIdx)), big.NewInt(int64(toIdx)), big.NewInt(int64(version)))
	if err != nil {
		return nil, fmt.Errorf("assetdata: pack curve bridge data: %w", err)
	}
	return packed, nil
}

// EncodeDexForwarderData returns the bridge data for a batched multi-call
// order that sells inputToken across calls.
func EncodeDexForwarderData(inputToken common.Address, calls []DexCall) ([]byte, error) {
	normalized := make([]DexCall, len(calls))
	for i, c := range calls {
		if c.BridgeData == nil {
			c.BridgeData = []byte{}
		}
		normalized[i] = c
	}
	packed, err := forwarderArgs.Pack(inputToken, normalized)
	if err != nil {
		return nil, fmt.Errorf("assetdata: pack dex forwarder data: %w", err)
	}
	return packed, nil
}

// DecodeDexForwarderData reverses EncodeDexForwarderData.
func DecodeDexForwarderData(data []byte) (common.Address, []DexCall, error) {
	vals, err := forwarderArgs.Unpack(data)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%w: dex forwarder data: %v", domain.ErrInvalidAssetData, err)
	}
	input, _ := vals[0].(common.Address)
	calls, ok := abi.ConvertType(vals[1], new([]DexCall)).(*[]DexCall)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("%w: dex forwarder calls", domain.ErrInvalidAssetData)
	}
	return input, *calls, nil
}

// Decode parses ERC20 or ERC20Bridge asset data.
func Decode(data []byte) (Decoded, error) {
	if len(data) < 4 {
		return Decoded{}, fmt.Errorf("%w: %d bytes", domain.ErrInvalidAssetData, len(data))
	}
	id, body := data[:4], data[4:]
	switch {
	case bytes.Equal(id, ERC20ProxyID):
		vals, err := erc20Args.Unpack(body)
		if err != nil {
			return Decoded{}, fmt.Errorf("%w: erc20: %v", domain.ErrInvalidAssetData, err)
		}
		return Decoded{ProxyID: ERC20ProxyID, Token: vals[0].(common.Address)}, nil
	case bytes.Equal(id, ERC20BridgeProxyID):
		vals, err := erc20BridgeArgs.Unpack(body)
		if err != nil {
			return Decoded{}, fmt.Errorf("%w: erc20 bridge: %v", domain.ErrInvalidAssetData, err)
		}
		return Decoded{
			ProxyID:    ERC20BridgeProxyID,
			Token:      vals[0].(common.Address),
			Bridge:     vals[1].(common.Address),
			BridgeData: vals[2].([]byte),
		}, nil
	default:
		return Decoded{}, fmt.Errorf("%w: proxy id %s", domain.ErrNotERC20AssetData, hexutil.Encode(id))
	}
}

// DecodeHex parses 0x-prefixed asset data.
func DecodeHex(s string) (Decoded, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", domain.ErrInvalidAssetData, err)
	}
	return Decode(raw)
}

// TokenAddress returns the token carried by ERC20 or ERC20Bridge asset data.
func TokenAddress(data []byte) (common.Address, error) {
	d, err := Decode(data)
	if err != nil {
		return common.Address{}, err
	}
	return d.Token, nil
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
