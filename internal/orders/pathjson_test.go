package orders

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

func TestParsePath(t *testing.T) {
	path, err := ParsePath([]byte(`[
		{"source": "Uniswap", "input": "100", "output": 99},
		{"source": "Native", "input": "50", "output": "150", "nativeOrder": {
			"chainId": 1,
			"makerAddress": "0x00000000000000000000000000000000000000aa",
			"makerAssetAmount": "300",
			"takerAssetAmount": "100",
			"makerFee": "0",
			"takerFee": "10",
			"expirationTimeSeconds": "1700000000",
			"salt": "42",
			"makerAssetData": "0xf47261b0",
			"takerAssetData": "0xf47261b0",
			"signature": "0x02",
			"fillableTakerAssetAmount": "60"
		}}
	]`))
	require.NoError(t, err)
	require.Len(t, path, 2)

	assert.Equal(t, domain.SourceUniswap, path[0].Source)
	assert.Equal(t, big.NewInt(99), path[0].Output)
	assert.Nil(t, path[0].NativeOrder)

	native := path[1].NativeOrder
	require.NotNil(t, native)
	assert.Equal(t, int64(1), native.ChainID)
	assert.Equal(t, common.HexToAddress("0xaa"), native.MakerAddress)
	assert.Equal(t, big.NewInt(60), native.FillableTakerAssetAmount)
	assert.Equal(t, big.NewInt(300), native.FillableMakerAssetAmount, "unset fillable amounts default to the order")
	assert.Equal(t, big.NewInt(10), native.FillableTakerFeeAmount)
	assert.Equal(t, []byte{0x02}, []byte(native.Signature))
	assert.Empty(t, native.TakerFeeAssetData)
}

func TestParsePathRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not an array", `{"source":"Uniswap"}`},
		{"fractional input", `[{"source":"Uniswap","input":"1.5","output":"1"}]`},
		{"negative output", `[{"source":"Uniswap","input":"1","output":"-1"}]`},
		{"missing output", `[{"source":"Uniswap","input":"1"}]`},
		{"bad native address", `[{"source":"Native","input":"1","output":"1","nativeOrder":{"makerAddress":"0x12"}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePath([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}
