package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xela07ax/zkspend-gateway/internal/domain"
)

type ProofHandler struct {
	gw     Gateway
	logger *zap.Logger
}

func NewProofHandler(gw Gateway, logger *zap.Logger) *ProofHandler {
	return &ProofHandler{gw: gw, logger: logger}
}

// Amount: NullDecimal, чтобы отличить пропущенную сумму от нуля
type proveRequest struct {
	Amount     decimal.NullDecimal `json:"amount"`
	PolicyName string              `json:"policyName"`
}

// Prove строит доказательство amount <= maxSpend.
// POST /v1/proofs
func (h *ProofHandler) Prove(w http.ResponseWriter, r *http.Request) {
	var req proveRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Amount.Valid || req.PolicyName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount and policyName are required"})
		return
	}

	resp, err := h.gw.Prove(r.Context(), req.Amount.Decimal, req.PolicyName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Verify проверяет доказательство. ?signals=true раскрывает commitment и isValid.
// POST /v1/proofs/verify
func (h *ProofHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var proof domain.ZKProof
	if !decode(w, r, &proof) {
		return
	}
	withSignals, _ := strconv.ParseBool(r.URL.Query().Get("signals"))

	res, err := h.gw.Verify(r.Context(), &proof, withSignals)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
