package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRequest describes one firm-quote round sent to every configured
// market maker.
type QuoteRequest struct {
	MakerAssetData string        `json:"makerAssetData"`
	TakerAssetData string        `json:"takerAssetData"`
	Side           Side          `json:"side"`
	Amount         *big.Int      `json:"amount"`
	APIKey         string        `json:"-"`
	TakerAddress   string        `json:"takerAddress"`
	Timeout        time.Duration `json:"timeout"`
}

// FirmQuote is a validated, signed order returned by a market maker with all
// numeric fields converted to exact decimals.
type FirmQuote struct {
	ID                    string          `json:"id"`
	Endpoint              string          `json:"endpoint"`
	OrderHash             string          `json:"orderHash"`
	ChainID               int64           `json:"chainId"`
	ExchangeAddress       string          `json:"exchangeAddress"`
	MakerAddress          string          `json:"makerAddress"`
	TakerAddress          string          `json:"takerAddress"`
	FeeRecipientAddress   string          `json:"feeRecipientAddress"`
	SenderAddress         string          `json:"senderAddress"`
	MakerAssetAmount      decimal.Decimal `json:"makerAssetAmount"`
	TakerAssetAmount      decimal.Decimal `json:"takerAssetAmount"`
	MakerFee              decimal.Decimal `json:"makerFee"`
	TakerFee              decimal.Decimal `json:"takerFee"`
	ExpirationTimeSeconds decimal.Decimal `json:"expirationTimeSeconds"`
	Salt                  decimal.Decimal `json:"salt"`
	MakerAssetData        string          `json:"makerAssetData"`
	TakerAssetData        string          `json:"takerAssetData"`
	MakerFeeAssetData     string          `json:"makerFeeAssetData"`
	TakerFeeAssetData     string          `json:"takerFeeAssetData"`
	Signature             string          `json:"signature"`
	ReceivedAt            time.Time       `json:"receivedAt"`
}

// OutcomeKind is the terminal state of one market-maker call.
type OutcomeKind string

const (
	OutcomeAccepted      OutcomeKind = "accepted"
	OutcomeTransport     OutcomeKind = "transport"
	OutcomeTimeout       OutcomeKind = "timeout"
	OutcomeHTTPStatus    OutcomeKind = "http_status"
	OutcomeSchema        OutcomeKind = "schema"
	OutcomeTokenMismatch OutcomeKind = "token_mismatch"
)

// QuoteOutcome records what happened to one market-maker call. Failures are
// carried as data; a round never fails because a maker did.
type QuoteOutcome struct {
	Endpoint string        `json:"endpoint"`
	Kind     OutcomeKind   `json:"kind"`
	Quote    *FirmQuote    `json:"quote,omitempty"`
	Err      string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
}

// Accepted reports whether the call produced a usable quote.
func (o QuoteOutcome) Accepted() bool {
	return o.Kind == OutcomeAccepted && o.Quote != nil
}

// QuoteRound is the archived record of one firm-quote round.
type QuoteRound struct {
	ID        string         `json:"id"`
	Request   QuoteRequest   `json:"request"`
	Outcomes  []QuoteOutcome `json:"outcomes"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
}

// AcceptedQuotes filters the accepted quotes out of a set of outcomes,
// preserving their order.
func AcceptedQuotes(outcomes []QuoteOutcome) []FirmQuote {
	var out []FirmQuote
	for _, o := range outcomes {
		if o.Accepted() {
			out = append(out, *o.Quote)
		}
	}
	return out
}
