package rfq

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swaprouter/internal/crypto"
	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/platform/maker"
)

var (
	hexBytesRe = regexp.MustCompile(`^0[xX]([0-9a-fA-F]{2})*$`)
	wholeNumRe = regexp.MustCompile(`^[0-9]+$`)
)

// Validator checks maker responses before they are trusted.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator with the quote schema rules registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("hexbytes", func(fl validator.FieldLevel) bool {
		return hexBytesRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("wholenum", func(fl validator.FieldLevel) bool {
		return wholeNumRe.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// rejection is a validation failure carrying the outcome kind it maps to.
type rejection struct {
	kind domain.OutcomeKind
	err  error
}

func (r *rejection) Error() string { return fmt.Sprintf("%s: %v", r.kind, r.err) }
func (r *rejection) Unwrap() error { return r.err }

// Validate runs the schema check, the asset data cross-check against req,
// and the decimal conversion. The returned error is a *rejection.
func (v *Validator) Validate(q maker.APIFirmQuote, req domain.QuoteRequest, endpoint string, receivedAt time.Time) (domain.FirmQuote, error) {
	if err := v.v.Struct(q); err != nil {
		return domain.FirmQuote{}, &rejection{kind: domain.OutcomeSchema, err: err}
	}

	if !strings.EqualFold(q.MakerAssetData, req.MakerAssetData) || !strings.EqualFold(q.TakerAssetData, req.TakerAssetData) {
		return domain.FirmQuote{}, &rejection{
			kind: domain.OutcomeTokenMismatch,
			err: fmt.Errorf("asset data maker=%s taker=%s, want maker=%s taker=%s",
				q.MakerAssetData, q.TakerAssetData, req.MakerAssetData, req.TakerAssetData),
		}
	}

	nums := map[string]string{
		"makerAssetAmount":      q.MakerAssetAmount.String(),
		"takerAssetAmount":      q.TakerAssetAmount.String(),
		"makerFee":              q.MakerFee.String(),
		"takerFee":              q.TakerFee.String(),
		"expirationTimeSeconds": q.ExpirationTimeSeconds.String(),
		"salt":                  q.Salt.String(),
	}
	dec := make(map[string]decimal.Decimal, len(nums))
	for name, s := range nums {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return domain.FirmQuote{}, &rejection{kind: domain.OutcomeSchema, err: fmt.Errorf("%s: %w", name, err)}
		}
		dec[name] = d
	}

	signed, err := toSignedOrder(q)
	if err != nil {
		return domain.FirmQuote{}, &rejection{kind: domain.OutcomeSchema, err: err}
	}

	return domain.FirmQuote{
		Endpoint:              endpoint,
		OrderHash:             crypto.OrderHashHex(signed),
		ChainID:               q.ChainID,
		ExchangeAddress:       q.ExchangeAddress,
		MakerAddress:          q.MakerAddress,
		TakerAddress:          q.TakerAddress,
		FeeRecipientAddress:   q.FeeRecipientAddress,
		SenderAddress:         q.SenderAddress,
		MakerAssetAmount:      dec["makerAssetAmount"],
		TakerAssetAmount:      dec["takerAssetAmount"],
		MakerFee:              dec["makerFee"],
		TakerFee:              dec["takerFee"],
		ExpirationTimeSeconds: dec["expirationTimeSeconds"],
		Salt:                  dec["salt"],
		MakerAssetData:        q.MakerAssetData,
		TakerAssetData:        q.TakerAssetData,
		MakerFeeAssetData:     q.MakerFeeAssetData,
		TakerFeeAssetData:     q.TakerFeeAssetData,
		Signature:             q.Signature,
		ReceivedAt:            receivedAt,
	}, nil
}

// toSignedOrder converts a schema-valid quote into an order for hashing.
func toSignedOrder(q maker.APIFirmQuote) (domain.SignedOrder, error) {
	ints := make([]*big.Int, 0, 6)
	for _, s := range []string{
		q.MakerAssetAmount.String(), q.TakerAssetAmount.String(),
		q.MakerFee.String(), q.TakerFee.String(),
		q.ExpirationTimeSeconds.String(), q.Salt.String(),
	} {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return domain.SignedOrder{}, fmt.Errorf("integer %q", s)
		}
		ints = append(ints, n)
	}
	blobs := make([][]byte, 0, 5)
	for _, s := range []string{q.MakerAssetData, q.TakerAssetData, q.MakerFeeAssetData, q.TakerFeeAssetData, q.Signature} {
		b, err := hexutil.Decode(s)
		if err != nil {
			return domain.SignedOrder{}, fmt.Errorf("hex %q: %w", s, err)
		}
		blobs = append(blobs, b)
	}
	return domain.SignedOrder{
		ChainID:               q.ChainID,
		ExchangeAddress:       common.HexToAddress(q.ExchangeAddress),
		MakerAddress:          common.HexToAddress(q.MakerAddress),
		TakerAddress:          common.HexToAddress(q.TakerAddress),
		FeeRecipientAddress:   common.HexToAddress(q.FeeRecipientAddress),
		SenderAddress:         common.HexToAddress(q.SenderAddress),
		MakerAssetAmount:      ints[0],
		TakerAssetAmount:      ints[1],
		MakerFee:              ints[2],
		TakerFee:              ints[3],
		ExpirationTimeSeconds: ints[4],
		Salt:                  ints[5],
		MakerAssetData:        blobs[0],
		TakerAssetData:        blobs[1],
		MakerFeeAssetData:     blobs[2],
		TakerFeeAssetData:     blobs[3],
		Signature:             blobs[4],
	}, nil
}
