package handlers

import (
	"net/http"

	"github.com/maremotors/backoffice/internal/httpx"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
)

type InventoryHandler struct {
	svc *services.InventoryService
}

func NewInventoryHandler(svc *services.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// Adjust handles POST /inventory/{id}/adjust.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.AdjustInput) (*models.Product, error) {
			return h.svc.Adjust(r.Context(), id, in)
		})
	})(w, r)
}

// Count handles POST /inventory/{id}/count.
func (h *InventoryHandler) Count(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.CountInput) (*models.Product, error) {
			return h.svc.Count(r.Context(), id, in)
		})
	})(w, r)
}

func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Page(r)
	out, total, err := h.svc.Movements(r.Context(), httpx.QueryUint(r, "product_id"), limit, offset)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writePage(w, out, total, limit, offset)
}
