package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/swaprouter/internal/domain"
	"github.com/alanyoungcy/swaprouter/internal/orders"
	"github.com/alanyoungcy/swaprouter/internal/service"
)

// CompileService defines the methods that the compile handler requires from
// the service layer.
type CompileService interface {
	Compile(ctx context.Context, req service.CompileRequest) (domain.Compilation, error)
	Get(ctx context.Context, id string) (domain.Compilation, error)
	SignOrder(ctx context.Context, o domain.SignedOrder) (domain.SignedOrder, string, error)
}

// CompileHandler serves path compilation and order signing.
type CompileHandler struct {
	svc    CompileService
	logger *slog.Logger
}

// NewCompileHandler creates a CompileHandler.
func NewCompileHandler(svc CompileService, logger *slog.Logger) *CompileHandler {
	return &CompileHandler{svc: svc, logger: logger}
}

type compileRequest struct {
	Side              string            `json:"side"`
	InputToken        string            `json:"inputToken"`
	OutputToken       string            `json:"outputToken"`
	Slippage          *string           `json:"slippage,omitempty"`
	BatchBridgeOrders *bool             `json:"batchBridgeOrders,omitempty"`
	LiquidityProvider string            `json:"liquidityProvider,omitempty"`
	Path              []orders.FillJSON `json:"path"`
}

func (req compileRequest) toService() (service.CompileRequest, error) {
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return service.CompileRequest{}, err
	}
	input, err := parseAddress("inputToken", req.InputToken, true)
	if err != nil {
		return service.CompileRequest{}, err
	}
	output, err := parseAddress("outputToken", req.OutputToken, true)
	if err != nil {
		return service.CompileRequest{}, err
	}
	lp, err := parseAddress("liquidityProvider", req.LiquidityProvider, false)
	if err != nil {
		return service.CompileRequest{}, err
	}
	path, err := orders.PathFromJSON(req.Path)
	if err != nil {
		return service.CompileRequest{}, err
	}

	out := service.CompileRequest{
		Path:              path,
		Side:              side,
		InputToken:        input,
		OutputToken:       output,
		BatchBridgeOrders: req.BatchBridgeOrders,
		LiquidityProvider: lp,
	}
	if req.Slippage != nil {
		tol, err := orders.ParseSlippage(*req.Slippage)
		if err != nil {
			return service.CompileRequest{}, err
		}
		out.Slippage = &tol
	}
	return out, nil
}

type compileResponse struct {
	Compilation domain.Compilation `json:"compilation"`
}

// Compile compiles a path into settlement orders.
// POST /api/orders/compile
func (h *CompileHandler) Compile(w http.ResponseWriter, r *http.Request) {
	var body compileRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := body.toService()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.svc.Compile(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "compile", err)
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{Compilation: c})
}

// GetCompilation returns a stored compilation.
// GET /api/compilations/{id}
func (h *CompileHandler) GetCompilation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "compilation id required")
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get compilation", err)
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{Compilation: c})
}

type signRequest struct {
	Order orders.OrderJSON `json:"order"`
}

type signResponse struct {
	Order     domain.SignedOrder `json:"order"`
	OrderHash string             `json:"orderHash"`
}

// SignOrder signs an order with the configured key.
// POST /api/orders/sign
func (h *CompileHandler) SignOrder(w http.ResponseWriter, r *http.Request) {
	var body signRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := body.Order.SignedOrder()
	if err != nil {
		writeError(w, http.StatusBadRequest, "order: "+err.Error())
		return
	}

	signed, hash, err := h.svc.SignOrder(r.Context(), o)
	if err != nil {
		writeServiceError(w, r, h.logger, "sign order", err)
		return
	}
	writeJSON(w, http.StatusOK, signResponse{Order: signed, OrderHash: hash})
}

func parseAddress(name, s string, required bool) (common.Address, error) {
	if s == "" {
		if required {
			return common.Address{}, fmt.Errorf("%s: required", name)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}
