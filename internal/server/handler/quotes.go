package handler

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/swaprouter/internal/assetdata"
	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/service"
)

// maxQuoteTimeout caps the per-maker timeout a caller may ask for.
const maxQuoteTimeout = 10 * time.Second

// QuoteService defines the methods that the quote handler requires from the
// service layer.
type QuoteService interface {
	RequestFirmQuotes(ctx context.Context, req domain.QuoteRequest) (service.QuoteResult, error)
	Recent(ctx context.Context, opts domain.ListOpts) ([]domain.FirmQuote, error)
	Round(ctx context.Context, id string) (domain.QuoteRound, error)
	Rounds(ctx context.Context) ([]domain.BlobInfo, error)
}

// QuoteDefaults fill in what a firm-quote request leaves out.
type QuoteDefaults struct {
	APIKey       string
	TakerAddress string
	Timeout      time.Duration
}

// QuoteHandler serves firm-quote rounds and their history.
type QuoteHandler struct {
	svc      QuoteService
	defaults QuoteDefaults
	logger   *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(svc QuoteService, defaults QuoteDefaults, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{svc: svc, defaults: defaults, logger: logger}
}

// firmQuoteRequest names each asset either by token address or by its
// encoded asset data.
type firmQuoteRequest struct {
	MakerToken     string `json:"makerToken,omitempty"`
	TakerToken     string `json:"takerToken,omitempty"`
	MakerAssetData string `json:"makerAssetData,omitempty"`
	TakerAssetData string `json:"takerAssetData,omitempty"`
	Side           string `json:"side"`
	Amount         string `json:"amount"`
	TakerAddress   string `json:"takerAddress,omitempty"`
	TimeoutMs      int64  `json:"timeoutMs,omitempty"`
}

func (h *QuoteHandler) toDomain(body firmQuoteRequest, apiKey string) (domain.QuoteRequest, error) {
	side, err := domain.ParseSide(body.Side)
	if err != nil {
		return domain.QuoteRequest{}, err
	}
	makerData, err := assetDataFor("maker", body.MakerToken, body.MakerAssetData)
	if err != nil {
		return domain.QuoteRequest{}, err
	}
	takerData, err := assetDataFor("taker", body.TakerToken, body.TakerAssetData)
	if err != nil {
		return domain.QuoteRequest{}, err
	}
	amount, ok := new(big.Int).SetString(body.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return domain.QuoteRequest{}, errors.New("amount: must be a positive integer")
	}

	req := domain.QuoteRequest{
		MakerAssetData: makerData,
		TakerAssetData: takerData,
		Side:           side,
		Amount:         amount,
		APIKey:         apiKey,
		TakerAddress:   body.TakerAddress,
		Timeout:        h.defaults.Timeout,
	}
	if req.APIKey == "" {
		req.APIKey = h.defaults.APIKey
	}
	if req.TakerAddress == "" {
		req.TakerAddress = h.defaults.TakerAddress
	}
	if body.TimeoutMs < 0 {
		return domain.QuoteRequest{}, errors.New("timeoutMs: must not be negative")
	}
	if body.TimeoutMs > 0 {
		req.Timeout = min(time.Duration(body.TimeoutMs)*time.Millisecond, maxQuoteTimeout)
	}
	return req, nil
}

// assetDataFor returns explicit asset data when given, else the ERC20 asset
// data of token.
func assetDataFor(name, token, data string) (string, error) {
	switch {
	case data != "" && token != "":
		return "", errors.New(name + ": give a token or asset data, not both")
	case data != "":
		if _, err := assetdata.DecodeHex(data); err != nil {
			return "", errors.New(name + "AssetData: " + err.Error())
		}
		return strings.ToLower(data), nil
	case token != "":
		addr, err := parseAddress(name+"Token", token, true)
		if err != nil {
			return "", err
		}
		return hexutil.Encode(assetdata.EncodeERC20(addr)), nil
	default:
		return "", errors.New(name + "Token: required")
	}
}

// RequestFirm runs a firm-quote round. The caller's 0x-api-key header is
// forwarded to makers; without it the configured key is used.
// POST /api/quotes/firm
func (h *QuoteHandler) RequestFirm(w http.ResponseWriter, r *http.Request) {
	var body firmQuoteRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.toDomain(body, strings.TrimSpace(r.Header.Get("0x-api-key")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.RequestFirmQuotes(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "request firm quotes", err)
		return
	}
	if res.Quotes == nil {
		res.Quotes = []domain.FirmQuote{}
	}
	writeJSON(w, http.StatusOK, res)
}

type listQuotesResponse struct {
	Quotes []domain.FirmQuote `json:"quotes"`
}

// ListRecent returns stored quotes, newest first.
// GET /api/quotes/recent?limit=50&offset=0&since=...&until=...
func (h *QuoteHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quotes, err := h.svc.Recent(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list quotes", err)
		return
	}
	if quotes == nil {
		quotes = []domain.FirmQuote{}
	}
	writeJSON(w, http.StatusOK, listQuotesResponse{Quotes: quotes})
}

type listRoundsResponse struct {
	Rounds []domain.BlobInfo `json:"rounds"`
}

// ListRounds returns the archived rounds.
// GET /api/rounds
func (h *QuoteHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.svc.Rounds(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list rounds", err)
		return
	}
	if rounds == nil {
		rounds = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, listRoundsResponse{Rounds: rounds})
}

// GetRound returns one archived round with every maker outcome.
// GET /api/rounds/{id}
func (h *QuoteHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.svc.Round(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get round", err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}
