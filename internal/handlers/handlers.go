// Package handlers exposes the back-office services as a JSON API.
package handlers

import (
	"net/http"

	"github.com/maremotors/backoffice/internal/httpx"
)

// Page is the envelope of list endpoints.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func writePage[T any](w http.ResponseWriter, items []T, total int64, limit, offset int) {
	if items == nil {
		items = []T{}
	}
	httpx.JSON(w, http.StatusOK, Page[T]{Items: items, Total: total, Limit: limit, Offset: offset})
}

// decodeAndCall is the shape shared by create and update endpoints.
func decodeAndCall[In, Out any](w http.ResponseWriter, r *http.Request, status int, call func(In) (Out, error)) {
	var in In
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	out, err := call(in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, status, out)
}
