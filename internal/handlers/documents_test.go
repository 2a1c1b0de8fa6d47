package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
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

type documentBody struct {
	ID       uint     `json:"id"`
	Total    string   `json:"total"`
	Warnings []string `json:"warnings"`
}

func TestCreateAndUpdateReturnClampWarning(t *testing.T) {
	db := setupTestDB(t)
	client := models.Client{Name: "Marina Sur"}
	require.NoError(t, db.Create(&client).Error)
	labor := models.Service{Code: "LABOR", Name: "Labor hour", Price: decimal.NewFromInt(40)}
	credit := models.Service{Code: "TRADE-IN", Name: "Trade-in credit", Price: decimal.NewFromInt(-150)}
	require.NoError(t, db.Create(&labor).Error)
	require.NoError(t, db.Create(&credit).Error)

	h := NewDocumentHandler(models.KindSale, services.NewDocumentService(db, logger.Nop()), nil, logger.Nop())
	body := fmt.Sprintf(`{"client_id":%d,"lines":[{"kind":"service","service_id":%d,"quantity":2},{"kind":"service","service_id":%d,"quantity":1}]}`,
		client.ID, labor.ID, credit.ID)

	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created documentBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "0", created.Total)
	assert.Equal(t, []string{"discount_exceeds_total"}, created.Warnings)

	// Dropping the credit line clears the warning.
	body = fmt.Sprintf(`{"client_id":%d,"lines":[{"kind":"service","service_id":%d,"quantity":2}]}`, client.ID, labor.ID)
	r := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/sales/%d", created.ID), strings.NewReader(body))
	r.SetPathValue("id", fmt.Sprint(created.ID))
	w = httptest.NewRecorder()
	h.Update(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated documentBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "80", updated.Total)
	assert.Empty(t, updated.Warnings)
	assert.NotContains(t, w.Body.String(), "warnings")
}
