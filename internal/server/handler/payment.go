package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xela07ax/zkspend-gateway/internal/domain"
)

type PaymentHandler struct {
	gw     Gateway
	logger *zap.Logger
}

func NewPaymentHandler(gw Gateway, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{gw: gw, logger: logger}
}

type paymentRequest struct {
	Amount     decimal.NullDecimal `json:"amount"`
	Recipient  string              `json:"recipient"`
	Memo       string              `json:"memo"`
	Action     string              `json:"action"`
	PolicyName string              `json:"policyName"`
}

// Execute: политика, доказательство и платеж одним запросом.
// POST /v1/payments
func (h *PaymentHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Amount.Valid || req.PolicyName == "" || req.Recipient == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount, policyName and recipient are required"})
		return
	}

	resp, err := h.gw.ProcessPayment(r.Context(), domain.PaymentRequest{
		Amount:     req.Amount.Decimal,
		Recipient:  req.Recipient,
		Memo:       req.Memo,
		Action:     req.Action,
		PolicyName: req.PolicyName,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// Отказ провайдера (success=false) это тоже 200: доказательство выдано, статус в теле
	writeJSON(w, http.StatusOK, resp)
}
