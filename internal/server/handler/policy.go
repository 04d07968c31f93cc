package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PolicyHandler struct {
	gw          Gateway
	invalidator PolicyInvalidator
	logger      *zap.Logger
}

func NewPolicyHandler(gw Gateway, invalidator PolicyInvalidator, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{gw: gw, invalidator: invalidator, logger: logger}
}

// Get возвращает политику ENS-имени.
// GET /v1/policies/{name}
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, err := h.gw.Policy(r.Context(), name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Invalidate сбрасывает кэш политики, следующий запрос пойдет в ENS.
// DELETE /v1/policies/{name}/cache
func (h *PolicyHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.invalidator.Invalidate(r.Context(), name); err != nil {
		h.logger.Error("policy invalidation failed", zap.String("name", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "invalidation failed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
