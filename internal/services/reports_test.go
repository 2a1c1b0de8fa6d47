package services

import (
	"testing"
	"time"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReports(t *testing.T) {
	f := newFixture(t)
	pump := f.product(t, "PUMP", "100", 10)
	belt := f.product(t, "BELT", "20", 10)
	f.product(t, "SPARK", "3", 1)

	approve := func(kind models.DocumentKind, mechanic *uint, lines ...LineInput) *models.Document {
		doc, err := f.docs.Create(f.ctx, kind, DocumentInput{ClientID: f.client.ID, MechanicID: mechanic, Lines: lines})
		require.NoError(t, err)
		doc, _, err = f.docs.Transition(f.ctx, kind, doc.ID, models.StatusApproved)
		require.NoError(t, err)
		return doc
	}
	approve(models.KindSale, idp(f.mechanic.ID), productLine(pump.ID, 2), productLine(belt.ID, 1))
	approve(models.KindSale, nil, productLine(belt.ID, 4))
	approve(models.KindQuote, nil, productLine(pump.ID, 1))
	_, err := f.docs.Create(f.ctx, models.KindSale, DocumentInput{ClientID: f.client.ID, Lines: []LineInput{productLine(pump.ID, 5)}})
	require.NoError(t, err)

	reports := NewReportService(f.db, 2)
	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)

	sales, err := reports.Sales(f.ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 3, sales.Count)
	assert.True(t, sales.Total.Equal(dec("400")), "total %s", sales.Total)
	var saleDays int
	for _, d := range sales.Days {
		if d.Kind == models.KindSale {
			saleDays += d.Count
		}
	}
	assert.Equal(t, 2, saleDays)

	top, err := reports.TopProducts(f.ctx, from, to, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, belt.ID, top[0].ProductID)
	assert.Equal(t, 5, top[0].Quantity)
	assert.Equal(t, "BELT", top[0].Name)
	assert.Equal(t, pump.ID, top[1].ProductID)
	assert.True(t, top[1].Amount.Equal(dec("200")), "amount %s", top[1].Amount)

	_, err = reports.Sales(f.ctx, to, from)
	require.Error(t, err)

	low, err := reports.LowStock(f.ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "SPARK", low[0].Code)

	loads, err := reports.Mechanics(f.ctx)
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.Equal(t, 1, loads[0].ApprovedSales)
	assert.True(t, loads[0].SalesTotal.Equal(dec("220")))
}
