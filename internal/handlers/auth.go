package handlers

import (
	"errors"
	"net/http"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/httpx"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
	"gorm.io/gorm"
)

type AuthHandler struct {
	users    *services.UserService
	sessions *auth.Sessions
	db       *gorm.DB
	log      *logger.Logger
}

func NewAuthHandler(db *gorm.DB, users *services.UserService, sessions *auth.Sessions, log *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, db: db, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks the credentials and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	user, err := h.users.Authenticate(r.Context(), in.Email, in.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		h.log.WithContext(r.Context()).AuthEvent("login", in.Email, false, "invalid_credentials")
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.sessions.CreateSession(w, user.ID)
	h.log.WithContext(r.Context()).AuthEvent("login", user.Email, true, "")
	httpx.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSession(w)
	if uid, ok := auth.UserIDFromContext(r.Context()); ok {
		h.log.WithContext(r.Context()).WithUserID(uid).Info("logout")
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.Error(w, apperr.Unauthorized("unauthorized"))
			return
		}
		httpx.Error(w, apperr.Internal("auth.me", err))
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
