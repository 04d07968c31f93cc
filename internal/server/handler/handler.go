package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"github.com/xela07ax/zkspend-gateway/internal/ens"
	"github.com/xela07ax/zkspend-gateway/internal/policy"
	"github.com/xela07ax/zkspend-gateway/internal/prover"
)

// Gateway: то, что HTTP-слой требует от engine.Gateway
type Gateway interface {
	Prove(ctx context.Context, amount decimal.Decimal, name string) (*domain.ProofResponse, error)
	ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error)
	Verify(ctx context.Context, proof *domain.ZKProof, withSignals bool) (domain.VerificationResult, error)
	Policy(ctx context.Context, name string) (domain.Policy, error)
}

// PolicyInvalidator сбрасывает кэш политики (L1, L2 и соседние инстансы)
type PolicyInvalidator interface {
	Invalidate(ctx context.Context, name string) error
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит типизированные ошибки пайплайна в HTTP-статусы.
// Внутренние ошибки наружу не отдаются, только в лог.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		pErr *policy.PolicyError
		rErr *ens.ResolutionError
		cErr *domain.ComplianceError
	)

	switch {
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: cErr.Error(), Code: string(cErr.Reason)})
	case errors.As(err, &pErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: pErr.Error(), Code: string(pErr.Code)})
	case errors.As(err, &rErr):
		status := http.StatusBadGateway
		switch rErr.Kind {
		case ens.KindNotFound:
			status = http.StatusNotFound
		case ens.KindTimeout:
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, errorResponse{Error: rErr.Error(), Code: string(rErr.Kind)})
	case errors.Is(err, prover.ErrMalformedProof):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, prover.ErrArtifactsMissing):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "proving is not available"})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "request timed out"})
	default:
		logger.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
