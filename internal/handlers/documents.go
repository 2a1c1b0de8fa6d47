package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/httpx"
	"github.com/maremotors/backoffice/internal/idempotency"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
)

// DocumentHandler serves /quotes or /sales depending on kind.
type DocumentHandler struct {
	kind models.DocumentKind
	svc  *services.DocumentService
	idem idempotency.Gateway
	log  *logger.Logger
}

func NewDocumentHandler(kind models.DocumentKind, svc *services.DocumentService, idem idempotency.Gateway, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{kind: kind, svc: svc, idem: idem, log: log}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Page(r)
	status := models.DocumentStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		httpx.Error(w, apperr.Validation("invalid_status"))
		return
	}
	docs, total, err := h.svc.List(r.Context(), h.kind, services.DocumentFilter{
		Status:   status,
		ClientID: httpx.QueryUint(r, "client_id"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writePage(w, docs, total, limit, offset)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	doc, err := h.svc.Get(r.Context(), h.kind, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.DocumentInput) (*models.Document, error) {
		return h.svc.Create(r.Context(), h.kind, in)
	})
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	decodeAndCall(w, r, http.StatusOK, func(in services.DocumentInput) (*models.Document, error) {
		return h.svc.Update(r.Context(), h.kind, id, in)
	})
}

type statusRequest struct {
	Status models.DocumentStatus `json:"status"`
}

type transitionResponse struct {
	Document *models.Document     `json:"document"`
	From     models.DocumentStatus `json:"from"`
	Changed  bool                  `json:"changed"`
	Units    int                   `json:"units"`
}

// Transition applies PATCH {status}. With an Idempotency-Key header a retried
// request gets the first response back instead of running again.
func (h *DocumentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var in statusRequest
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	if !in.Status.Valid() {
		httpx.Error(w, apperr.Validation("invalid_status"))
		return
	}

	key := r.Header.Get(idempotency.Header)
	if key != "" && h.idem != nil {
		key = fmt.Sprintf("%s:%d:%s:%s", h.kind, id, in.Status, key)
		stored, err := h.idem.Reserve(ctx, key)
		if errors.Is(err, idempotency.ErrInProgress) {
			httpx.JSONError(w, http.StatusConflict, "request_in_progress", nil)
			return
		}
		if err != nil {
			h.log.WithContext(ctx).Error("idempotency reserve failed", "error", err.Error())
			httpx.JSONError(w, http.StatusServiceUnavailable, "idempotency_unavailable", nil)
			return
		}
		if stored != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	} else {
		key = ""
	}

	doc, res, err := h.svc.Transition(ctx, h.kind, id, in.Status)
	if err != nil {
		if key != "" {
			if ferr := h.idem.MarkFailure(ctx, key); ferr != nil {
				h.log.WithContext(ctx).Error("idempotency release failed", "error", ferr.Error())
			}
		}
		httpx.Error(w, err)
		return
	}
	body, err := json.Marshal(transitionResponse{Document: doc, From: res.From, Changed: res.Changed, Units: res.Units})
	if err != nil {
		httpx.Error(w, apperr.Internal("documents.transition", err))
		return
	}
	if key != "" {
		if err := h.idem.MarkSuccess(ctx, key, idempotency.Result{StatusCode: http.StatusOK, Body: body}); err != nil {
			h.log.WithContext(ctx).Error("idempotency store failed", "error", err.Error())
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), h.kind, id); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) Totals(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	report, err := h.svc.Totals(r.Context(), h.kind, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *DocumentHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	out, err := h.svc.Movements(r.Context(), h.kind, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Convert turns the approved quote {id} into a sale.
func (h *DocumentHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	sale, err := h.svc.Convert(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}
