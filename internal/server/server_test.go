package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/maremotors/backoffice/internal/idempotency"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testPassword = "s3cret-pass"

func newTestApp(t *testing.T) (*App, *gorm.DB) {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	hash, err := services.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	for _, u := range []models.User{
		{Email: "admin@maremotors.test", Password: hash, Role: models.RoleAdmin, Active: true},
		{Email: "sales@maremotors.test", Password: hash, Role: models.RoleSales, Active: true},
		{Email: "mechanic@maremotors.test", Password: hash, Role: models.RoleMechanic, Active: true},
		{Email: "desk@maremotors.test", Password: hash, Role: models.RoleReception, Active: true},
	} {
		require.NoError(t, db.Create(&u).Error)
	}
	app := NewApp(Deps{DB: db, SessionSecret: "test-secret", LowStockThreshold: 2})
	return app, db
}

type call struct {
	method  string
	path    string
	body    any
	cookie  *http.Cookie
	headers map[string]string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, h http.Handler, email string) *http.Cookie {
	t.Helper()
	w := do(t, h, call{method: http.MethodPost, path: "/auth/login", body: map[string]string{"email": email, "password": testPassword}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatalf("no session cookie in login response")
	return nil
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	app, _ := newTestApp(t)
	w := do(t, app, call{method: http.MethodGet, path: "/healthz"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	app, _ := newTestApp(t)
	w := do(t, app, call{method: http.MethodPost, path: "/auth/login", body: map[string]string{"email": "admin@maremotors.test", "password": "wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_credentials")
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	app, _ := newTestApp(t)
	w := do(t, app, call{method: http.MethodGet, path: "/quotes"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookie := login(t, app, "sales@maremotors.test")
	w = do(t, app, call{method: http.MethodGet, path: "/auth/me", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	me := decodeBody[models.User](t, w)
	assert.Equal(t, models.RoleSales, me.Role)
}

func TestRolePermissions(t *testing.T) {
	app, _ := newTestApp(t)
	mechanic := login(t, app, "mechanic@maremotors.test")

	w := do(t, app, call{method: http.MethodGet, path: "/quotes", cookie: mechanic})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, app, call{method: http.MethodGet, path: "/products", cookie: mechanic})
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, app, call{method: http.MethodGet, path: "/users", cookie: mechanic})
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := login(t, app, "admin@maremotors.test")
	w = do(t, app, call{method: http.MethodGet, path: "/users", cookie: admin})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeactivatedUserLosesSession(t *testing.T) {
	app, db := newTestApp(t)
	cookie := login(t, app, "sales@maremotors.test")
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "sales@maremotors.test").Update("active", false).Error)

	w := do(t, app, call{method: http.MethodGet, path: "/quotes", cookie: cookie})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestQuoteApprovalFlow(t *testing.T) {
	app, db := newTestApp(t)
	admin := login(t, app, "admin@maremotors.test")
	sales := login(t, app, "sales@maremotors.test")

	w := do(t, app, call{method: http.MethodPost, path: "/products", cookie: admin, body: map[string]any{
		"code": "OIL-10W40", "name": "Engine oil 10W40", "unit_price": "12.50", "stock": 5, "min_stock": 1,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	product := decodeBody[models.Product](t, w)

	client := models.Client{Name: "Marina Sol"}
	require.NoError(t, db.Create(&client).Error)

	w = do(t, app, call{method: http.MethodPost, path: "/quotes", cookie: sales, body: map[string]any{
		"client_id": client.ID,
		"lines":     []map[string]any{{"kind": "product", "product_id": product.ID, "quantity": 2}},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	quote := decodeBody[models.Document](t, w)
	assert.Equal(t, "Q-000001", quote.Number)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(25)), quote.Total.String())

	approve := call{
		method:  http.MethodPatch,
		path:    "/quotes/" + itoa(quote.ID) + "/status",
		cookie:  sales,
		body:    map[string]string{"status": "approved"},
		headers: map[string]string{idempotency.Header: "approve-1"},
	}
	first := do(t, app, approve)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	res := decodeBody[struct {
		Changed bool `json:"changed"`
		Units   int  `json:"units"`
	}](t, first)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.Units)

	replay := do(t, app, approve)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	w = do(t, app, call{method: http.MethodGet, path: "/products/" + itoa(product.ID), cookie: sales})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decodeBody[models.Product](t, w).Stock)

	// Editing an approved quote is refused.
	w = do(t, app, call{method: http.MethodPut, path: "/quotes/" + itoa(quote.ID), cookie: sales, body: map[string]any{
		"client_id": client.ID,
		"lines":     []map[string]any{{"kind": "product", "product_id": product.ID, "quantity": 1}},
	}})
	assert.Equal(t, http.StatusConflict, w.Code)

	// The quote is not reachable as a sale.
	w = do(t, app, call{method: http.MethodGet, path: "/sales/" + itoa(quote.ID), cookie: sales})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprovalReportsShortages(t *testing.T) {
	app, db := newTestApp(t)
	sales := login(t, app, "sales@maremotors.test")

	product := models.Product{Code: "IMPELLER", Name: "Impeller kit", UnitPrice: decimal.NewFromInt(40), Stock: 1}
	require.NoError(t, db.Create(&product).Error)
	client := models.Client{Name: "Puerto Azul"}
	require.NoError(t, db.Create(&client).Error)

	w := do(t, app, call{method: http.MethodPost, path: "/sales", cookie: sales, body: map[string]any{
		"client_id": client.ID,
		"lines":     []map[string]any{{"kind": "product", "product_id": product.ID, "quantity": 3}},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sale := decodeBody[models.Document](t, w)

	w = do(t, app, call{method: http.MethodPatch, path: "/sales/" + itoa(sale.ID) + "/status", cookie: sales, body: map[string]string{"status": "approved"}})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	body := decodeBody[struct {
		Error   string `json:"error"`
		Details []struct {
			ProductID uint `json:"product_id"`
			Requested int  `json:"requested"`
			Available int  `json:"available"`
		} `json:"details"`
	}](t, w)
	require.Len(t, body.Details, 1)
	assert.Equal(t, product.ID, body.Details[0].ProductID)
	assert.Equal(t, 3, body.Details[0].Requested)
	assert.Equal(t, 1, body.Details[0].Available)

	var got models.Product
	require.NoError(t, db.First(&got, product.ID).Error)
	assert.Equal(t, 1, got.Stock)
}

func TestReceptionIntake(t *testing.T) {
	app, _ := newTestApp(t)
	desk := login(t, app, "desk@maremotors.test")
	mechanic := login(t, app, "mechanic@maremotors.test")

	w := do(t, app, call{method: http.MethodPost, path: "/clients", cookie: desk, body: map[string]any{"name": "Rafael Costa", "email": "Rafael@Example.com"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	client := decodeBody[models.Client](t, w)
	assert.Equal(t, "rafael@example.com", client.Email)

	intake := map[string]any{
		"client_id": client.ID, "craft_type": "jet ski", "brand": "Yamaha", "hull_number": "yam12345x626",
		"engine_hours": 120, "reported_issue": "Loses power above 4000 rpm",
	}
	w = do(t, app, call{method: http.MethodPost, path: "/receptions", cookie: mechanic, body: intake})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, app, call{method: http.MethodPost, path: "/receptions", cookie: desk, body: intake})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reception := decodeBody[models.Reception](t, w)
	assert.Regexp(t, `^REC-[0-9A-F]{8}$`, reception.Ticket)
	assert.Equal(t, "YAM12345X626", reception.HullNumber)
	assert.Equal(t, models.ReceptionReceived, reception.Status)

	base := "/receptions/" + itoa(reception.ID)
	w = do(t, app, call{method: http.MethodPatch, path: base + "/status", cookie: mechanic, body: map[string]string{"status": "delivered"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, app, call{method: http.MethodPatch, path: base + "/status", cookie: mechanic, body: map[string]string{"status": "diagnosing"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.ReceptionDiagnosis, decodeBody[models.Reception](t, w).Status)

	w = do(t, app, call{method: http.MethodPost, path: base + "/quote", cookie: desk})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	quote := decodeBody[models.Document](t, w)
	assert.Equal(t, models.KindQuote, quote.Kind)
	assert.Equal(t, models.StatusPending, quote.Status)
	assert.Equal(t, client.ID, quote.ClientID)
	require.NotNil(t, quote.ReceptionID)
	assert.Equal(t, reception.ID, *quote.ReceptionID)
}

func TestRecoverAnswersJSON(t *testing.T) {
	h := withRecover(logger.Nop(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
