package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maremotors/backoffice/internal/apperr"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Error writes err as a JSON error. *apperr.Error values keep their status and details;
// anything else is reported as a 500 without leaking its text.
func Error(w http.ResponseWriter, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		msg := e.Message
		if e.Kind == apperr.KindInternal {
			msg = "internal_error"
		}
		JSONError(w, e.HTTPStatus(), msg, e.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}
