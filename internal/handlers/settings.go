package handlers

import (
	"net/http"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
)

type SettingsHandler struct {
	svc *services.SettingsService
}

func NewSettingsHandler(svc *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context())
	respond(w, s, err)
}

// Setup handles POST /settings and fails once the shop is configured.
func (h *SettingsHandler) Setup(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.SettingsInput) (*models.Settings, error) {
		return h.svc.Setup(r.Context(), in)
	})
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusOK, func(in services.SettingsInput) (*models.Settings, error) {
		return h.svc.Update(r.Context(), in)
	})
}

