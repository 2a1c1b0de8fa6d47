package services

import (
	"testing"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientWithDocumentsCannotBeDeleted(t *testing.T) {
	f := newFixture(t)
	parties := NewPartyService(f.db, f.log)

	c, err := parties.CreateClient(f.ctx, ClientInput{Name: " Diego Paz ", Email: "Diego@Example.com", City: "Cartagena"})
	require.NoError(t, err)
	assert.Equal(t, "Diego Paz", c.Name)
	assert.Equal(t, "diego@example.com", c.Email)

	_, err = f.docs.Create(f.ctx, models.KindQuote, DocumentInput{ClientID: c.ID})
	require.NoError(t, err)
	ae := requireAppErr(t, parties.DeleteClient(f.ctx, c.ID), apperr.KindConflict, "client_has_documents")
	assert.Equal(t, map[string]int64{"documents": 1}, ae.Details)

	free, err := parties.CreateClient(f.ctx, ClientInput{Name: "Walk-in"})
	require.NoError(t, err)
	require.NoError(t, parties.DeleteClient(f.ctx, free.ID))
	_, err = parties.GetClient(f.ctx, free.ID)
	requireAppErr(t, err, apperr.KindNotFound, "client_not_found")

	_, err = parties.CreateClient(f.ctx, ClientInput{Name: "x", Email: "not-an-email"})
	requireAppErr(t, err, apperr.KindValidation, "validation_failed")

	list, total, err := parties.ListClients(f.ctx, "diego", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, c.ID, list[0].ID)
}

func TestClientPhoneIsNormalized(t *testing.T) {
	f := newFixture(t)
	parties := NewPartyService(f.db, f.log).WithPhoneRegion("US")

	c, err := parties.CreateClient(f.ctx, ClientInput{Name: "Harbor Tours", Phone: "(650) 253-0000"})
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", c.Phone)

	c, err = parties.UpdateClient(f.ctx, c.ID, ClientInput{Name: "Harbor Tours", Phone: "ext. 12"})
	require.NoError(t, err)
	assert.Equal(t, "ext. 12", c.Phone)
}

func TestMechanics(t *testing.T) {
	f := newFixture(t)
	parties := NewPartyService(f.db, f.log)
	inactive := false

	m, err := parties.CreateMechanic(f.ctx, MechanicInput{Name: "Ana Soto", HourlyRate: dec("25"), Active: &inactive})
	require.NoError(t, err)
	assert.False(t, m.Active)
	stored, err := parties.GetMechanic(f.ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	active, err := parties.ListMechanics(f.ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, f.mechanic.ID, active[0].ID)

	// Referenced mechanics are deactivated instead of removed.
	_, err = f.docs.Create(f.ctx, models.KindQuote, DocumentInput{ClientID: f.client.ID, MechanicID: idp(f.mechanic.ID)})
	require.NoError(t, err)
	require.NoError(t, parties.DeleteMechanic(f.ctx, f.mechanic.ID))
	kept, err := parties.GetMechanic(f.ctx, f.mechanic.ID)
	require.NoError(t, err)
	assert.False(t, kept.Active)

	require.NoError(t, parties.DeleteMechanic(f.ctx, m.ID))
	_, err = parties.GetMechanic(f.ctx, m.ID)
	requireAppErr(t, err, apperr.KindNotFound, "mechanic_not_found")
}
