package handlers

import (
	"net/http"

	"github.com/maremotors/backoffice/internal/httpx"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
)

// PartyHandler serves clients and mechanics.
type PartyHandler struct {
	svc *services.PartyService
}

func NewPartyHandler(svc *services.PartyService) *PartyHandler {
	return &PartyHandler{svc: svc}
}

func (h *PartyHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Page(r)
	out, total, err := h.svc.ListClients(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writePage(w, out, total, limit, offset)
}

func (h *PartyHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		c, err := h.svc.GetClient(r.Context(), id)
		respond(w, c, err)
	})(w, r)
}

func (h *PartyHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.ClientInput) (*models.Client, error) {
		return h.svc.CreateClient(r.Context(), in)
	})
}

func (h *PartyHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.ClientInput) (*models.Client, error) {
			return h.svc.UpdateClient(r.Context(), id, in)
		})
	})(w, r)
}

func (h *PartyHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		noContent(w, h.svc.DeleteClient(r.Context(), id))
	})(w, r)
}

func (h *PartyHandler) ListMechanics(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListMechanics(r.Context(), r.URL.Query().Get("active") == "1")
	respond(w, out, err)
}

func (h *PartyHandler) GetMechanic(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		m, err := h.svc.GetMechanic(r.Context(), id)
		respond(w, m, err)
	})(w, r)
}

func (h *PartyHandler) CreateMechanic(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.MechanicInput) (*models.Mechanic, error) {
		return h.svc.CreateMechanic(r.Context(), in)
	})
}

func (h *PartyHandler) UpdateMechanic(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.MechanicInput) (*models.Mechanic, error) {
			return h.svc.UpdateMechanic(r.Context(), id, in)
		})
	})(w, r)
}

func (h *PartyHandler) DeleteMechanic(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		noContent(w, h.svc.DeleteMechanic(r.Context(), id))
	})(w, r)
}
