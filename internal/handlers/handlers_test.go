package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maremotors/backoffice/internal/idempotency"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	now := time.Date(2026, 3, 31, 15, 0, 0, 0, time.UTC)
	h := &ReportHandler{now: func() time.Time { return now }}

	tests := []struct {
		name     string
		query    string
		wantFrom time.Time
		wantTo   time.Time
		wantErr  string
	}{
		{name: "default window", wantFrom: now.Add(-30 * 24 * time.Hour), wantTo: now},
		{
			name:     "date only covers the last day",
			query:    "from=2026-03-01&to=2026-03-15",
			wantFrom: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "rfc3339 is exact",
			query:    "from=2026-03-01T08:00:00Z&to=2026-03-01T18:30:00Z",
			wantFrom: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC),
		},
		{name: "bad from", query: "from=yesterday", wantErr: "invalid_from"},
		{name: "bad to", query: "to=03/15/2026", wantErr: "invalid_to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/reports/sales?"+tt.query, nil)
			from, to, err := h.parseRange(r)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, from.Equal(tt.wantFrom), "from %s", from)
			assert.True(t, to.Equal(tt.wantTo), "to %s", to)
		})
	}
}

// stubGateway answers Reserve with a fixed outcome.
type stubGateway struct {
	stored *idempotency.Result
	err    error
}

func (s stubGateway) Reserve(context.Context, string) (*idempotency.Result, error) {
	return s.stored, s.err
}
func (stubGateway) MarkSuccess(context.Context, string, idempotency.Result) error { return nil }
func (stubGateway) MarkFailure(context.Context, string) error                     { return nil }

func transitionRequest(key string) *http.Request {
	r := httptest.NewRequest(http.MethodPatch, "/quotes/7/status", strings.NewReader(`{"status":"approved"}`))
	r.SetPathValue("id", "7")
	if key != "" {
		r.Header.Set(idempotency.Header, key)
	}
	return r
}

func TestTransitionIdempotencyOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		gw         stubGateway
		wantStatus int
		wantBody   string
		replayed   bool
	}{
		{name: "in progress", gw: stubGateway{err: idempotency.ErrInProgress}, wantStatus: http.StatusConflict, wantBody: "request_in_progress"},
		{name: "store down", gw: stubGateway{err: errors.New("dial tcp: refused")}, wantStatus: http.StatusServiceUnavailable, wantBody: "idempotency_unavailable"},
		{
			name:       "replay",
			gw:         stubGateway{stored: &idempotency.Result{StatusCode: http.StatusOK, Body: []byte(`{"changed":true,"units":2}`)}},
			wantStatus: http.StatusOK,
			wantBody:   `"units":2`,
			replayed:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDocumentHandler(models.KindQuote, nil, tt.gw, logger.Nop())
			w := httptest.NewRecorder()
			h.Transition(w, transitionRequest("k1"))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			if tt.replayed {
				assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
			}
		})
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	h := NewDocumentHandler(models.KindSale, nil, nil, logger.Nop())
	r := httptest.NewRequest(http.MethodPatch, "/sales/3/status", strings.NewReader(`{"status":"shipped"}`))
	r.SetPathValue("id", "3")
	w := httptest.NewRecorder()
	h.Transition(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_status")
}

func TestWritePageNeverReturnsNullItems(t *testing.T) {
	w := httptest.NewRecorder()
	writePage[models.Client](w, nil, 0, 50, 0)
	assert.JSONEq(t, `{"items":[],"total":0,"limit":50,"offset":0}`, w.Body.String())
}
