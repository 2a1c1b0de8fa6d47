package handlers

import (
	"errors"
	"net/http"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/httpx"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
)

type ReceptionHandler struct {
	svc *services.ReceptionService
}

func NewReceptionHandler(svc *services.ReceptionService) *ReceptionHandler {
	return &ReceptionHandler{svc: svc}
}

func (h *ReceptionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Page(r)
	status := models.ReceptionStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		httpx.Error(w, apperr.Validation("invalid_status"))
		return
	}
	out, total, err := h.svc.List(r.Context(), services.ReceptionFilter{
		Status:     status,
		ClientID:   httpx.QueryUint(r, "client_id"),
		MechanicID: httpx.QueryUint(r, "mechanic_id"),
		OpenOnly:   r.URL.Query().Get("open") == "1",
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writePage(w, out, total, limit, offset)
}

func (h *ReceptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		rec, err := h.svc.Get(r.Context(), id)
		respond(w, rec, err)
	})(w, r)
}

func (h *ReceptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.ReceptionInput) (*models.Reception, error) {
		return h.svc.Create(r.Context(), in)
	})
}

func (h *ReceptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.ReceptionInput) (*models.Reception, error) {
			return h.svc.Update(r.Context(), id, in)
		})
	})(w, r)
}

type receptionStatusRequest struct {
	Status models.ReceptionStatus `json:"status"`
}

// Advance handles PATCH /receptions/{id}/status.
func (h *ReceptionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in receptionStatusRequest) (*models.Reception, error) {
			if !in.Status.Valid() {
				return nil, apperr.Validation("invalid_status")
			}
			return h.svc.Advance(r.Context(), id, in.Status)
		})
	})(w, r)
}

// CreateQuote handles POST /receptions/{id}/quote. The body is optional.
func (h *ReceptionHandler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		var in services.ReceptionQuoteInput
		if err := httpx.Decode(r, &in); err != nil && !isEmptyBody(err) {
			httpx.Error(w, err)
			return
		}
		doc, err := h.svc.CreateQuote(r.Context(), id, in)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, doc)
	})(w, r)
}

func isEmptyBody(err error) bool {
	var ae *apperr.Error
	return errors.As(err, &ae) && ae.Message == "empty_body"
}
