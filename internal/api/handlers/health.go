package handlers

import (
	"net/http"

	"ledger-reconciliation-service/internal/api/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	*Base
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(base *Base) *HealthHandler {
	return &HealthHandler{Base: base}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, dto.NewHealthResponse())
}
