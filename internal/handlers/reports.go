package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/httpx"
	"github.com/maremotors/backoffice/internal/services"
)

const defaultReportWindow = 30 * 24 * time.Hour

type ReportHandler struct {
	svc *services.ReportService
	now func() time.Time
}

func NewReportHandler(svc *services.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc, now: time.Now}
}

// parseRange reads from/to as dates or RFC 3339 times. A date-only "to" covers
// the whole day. Without parameters the last 30 days are used.
func (h *ReportHandler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	to := h.now().UTC()
	from := to.Add(-defaultReportWindow)
	if v := r.URL.Query().Get("from"); v != "" {
		t, _, err := parseTime(v)
		if err != nil {
			return from, to, apperr.Validation("invalid_from")
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, dateOnly, err := parseTime(v)
		if err != nil {
			return from, to, apperr.Validation("invalid_to")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		to = t
	}
	return from, to, nil
}

func parseTime(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}

func (h *ReportHandler) Sales(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.parseRange(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	report, err := h.svc.Sales(r.Context(), from, to)
	respond(w, report, err)
}

func (h *ReportHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.parseRange(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.svc.TopProducts(r.Context(), from, to, limit)
	respond(w, out, err)
}

func (h *ReportHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.LowStock(r.Context())
	respond(w, out, err)
}

func (h *ReportHandler) Mechanics(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Mechanics(r.Context())
	respond(w, out, err)
}
