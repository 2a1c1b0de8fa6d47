package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUsers(t *testing.T) {
	f := newFixture(t)
	gate := policy.NewGate(f.db, time.Minute)
	users := NewUserService(f.db, gate, f.log)
	users.cost = bcrypt.MinCost

	u, err := users.Create(f.ctx, UserInput{Email: " Clerk@Maremotors.test ", Name: "Clerk", Password: "harbor-2026", Role: models.RoleReception})
	require.NoError(t, err)
	assert.Equal(t, "clerk@maremotors.test", u.Email)
	assert.NotEqual(t, "harbor-2026", u.Password)

	_, err = users.Create(f.ctx, UserInput{Email: "clerk@maremotors.test", Password: "harbor-2026", Role: models.RoleSales})
	requireAppErr(t, err, apperr.KindConflict, "email_already_exists")
	_, err = users.Create(f.ctx, UserInput{Email: "x@maremotors.test", Password: "harbor-2026", Role: "owner"})
	requireAppErr(t, err, apperr.KindValidation, "invalid_role")
	_, err = users.Create(f.ctx, UserInput{Email: "x@maremotors.test", Password: "short", Role: models.RoleSales})
	requireAppErr(t, err, apperr.KindValidation, "validation_failed")

	got, err := users.Authenticate(f.ctx, "CLERK@maremotors.test", "harbor-2026")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = users.Authenticate(f.ctx, "clerk@maremotors.test", "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = users.Authenticate(f.ctx, "nobody@maremotors.test", "harbor-2026")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	// The gate caches the reception profile until the role changes.
	ctx := auth.WithUserID(context.Background(), u.ID)
	assert.True(t, gate.Can(ctx, "reception", policy.ActionCreate))
	assert.False(t, gate.Can(ctx, "sale", policy.ActionApprove))

	changed, err := users.SetRole(f.ctx, u.ID, RoleInput{Role: models.RoleSales})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSales, changed.Role)
	assert.True(t, gate.Can(ctx, "sale", policy.ActionApprove))

	inactive := false
	_, err = users.SetRole(f.ctx, u.ID, RoleInput{Role: models.RoleSales, Active: &inactive})
	require.NoError(t, err)
	assert.False(t, users.Active(f.ctx, u.ID))
	_, err = users.Authenticate(f.ctx, "clerk@maremotors.test", "harbor-2026")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = users.SetRole(f.ctx, 999, RoleInput{Role: models.RoleSales})
	requireAppErr(t, err, apperr.KindNotFound, "user_not_found")

	list, err := users.List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
