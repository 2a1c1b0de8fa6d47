package policy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/httpx"
	"gorm.io/gorm"
)

var ErrUnauthorized = errors.New("unauthorized")

// Gate is the central authorization checkpoint of the API.
type Gate struct {
	resolver *CachedResolver
}

// NewGate creates a gate resolving roles from db, cached for cacheTTL.
func NewGate(db *gorm.DB, cacheTTL time.Duration) *Gate {
	return NewGateWithResolver(NewRoleResolver(db), cacheTTL)
}

func NewGateWithResolver(r Resolver, cacheTTL time.Duration) *Gate {
	return &Gate{resolver: NewCachedResolver(r, cacheTTL)}
}

// Authorize returns ErrUnauthorized unless the user in ctx may perform action on resourceType.
func (g *Gate) Authorize(ctx context.Context, resourceType string, action Action) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	profile, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if profile == nil || !profile.HasPermission(NewPermission(resourceType, action)) {
		return ErrUnauthorized
	}
	return nil
}

func (g *Gate) Can(ctx context.Context, resourceType string, action Action) bool {
	return g.Authorize(ctx, resourceType, action) == nil
}

// InvalidateUser drops the cached profile of a user whose role changed.
func (g *Gate) InvalidateUser(userID uint) { g.resolver.Invalidate(userID) }

// RequirePermission returns middleware that answers 403 without the permission.
func (g *Gate) RequirePermission(resourceType string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := g.Authorize(r.Context(), resourceType, action); err != nil {
				if errors.Is(err, ErrUnauthorized) {
					httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
					return
				}
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin only lets users holding "*:*" through.
func (g *Gate) RequireAdmin() func(http.Handler) http.Handler {
	return g.RequirePermission(WildcardAll, WildcardAll)
}
