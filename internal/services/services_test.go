package services

import (
	"context"
	"testing"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func idp(v uint) *uint { return &v }

type fixture struct {
	db       *gorm.DB
	ctx      context.Context
	log      *logger.Logger
	client   models.Client
	mechanic models.Mechanic
	docs     *DocumentService
}

// newFixture opens a database with one admin acting in ctx, one client and one mechanic.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	admin := models.User{Email: "admin@maremotors.test", Password: "x", Role: models.RoleAdmin, Active: true}
	require.NoError(t, db.Create(&admin).Error)
	client := models.Client{Name: "Lucia Ferrer", Phone: "555-0101"}
	require.NoError(t, db.Create(&client).Error)
	mechanic := models.Mechanic{Name: "Tomas Rios", Active: true}
	require.NoError(t, db.Create(&mechanic).Error)

	log := logger.Nop()
	return &fixture{
		db:       db,
		ctx:      auth.WithUserID(context.Background(), admin.ID),
		log:      log,
		client:   client,
		mechanic: mechanic,
		docs:     NewDocumentService(db, log),
	}
}

func (f *fixture) product(t *testing.T, code, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{Code: code, Name: code, UnitPrice: dec(price), Stock: stock}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) service(t *testing.T, code, price string) models.Service {
	t.Helper()
	s := models.Service{Code: code, Name: code, Price: dec(price)}
	require.NoError(t, f.db.Create(&s).Error)
	return s
}

func (f *fixture) stockOf(t *testing.T, id uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.Unscoped().First(&p, id).Error)
	return p.Stock
}

func productLine(id uint, qty int) LineInput {
	return LineInput{Kind: models.KindProduct, ProductID: idp(id), Quantity: qty}
}

func serviceLine(id uint, qty int) LineInput {
	return LineInput{Kind: models.KindService, ServiceID: idp(id), Quantity: qty}
}

// requireAppErr asserts err carries kind and message and returns it.
func requireAppErr(t *testing.T, err error, kind apperr.Kind, message string) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, kind, ae.Kind, "error: %v", err)
	require.Equal(t, message, ae.Message, "error: %v", err)
	return ae
}
