package handlers

import (
	"net/http"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
)

// UserHandler is the admin-only account management API.
type UserHandler struct {
	svc *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	respond(w, users, err)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.UserInput) (*models.User, error) {
		return h.svc.Create(r.Context(), in)
	})
}

// SetRole handles PATCH /users/{id}/role.
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.RoleInput) (*models.User, error) {
			return h.svc.SetRole(r.Context(), id, in)
		})
	})(w, r)
}
