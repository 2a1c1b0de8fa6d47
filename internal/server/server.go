// Package server wires services and handlers into the HTTP API.
package server

import (
	"net/http"
	"time"

	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/handlers"
	"github.com/maremotors/backoffice/internal/httpx"
	"github.com/maremotors/backoffice/internal/idempotency"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/metrics"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/policy"
	"github.com/maremotors/backoffice/internal/requestid"
	"github.com/maremotors/backoffice/internal/services"
	"github.com/maremotors/backoffice/internal/tracing"
	"gorm.io/gorm"
)

// Deps are the collaborators built by main.
type Deps struct {
	DB                *gorm.DB
	Log               *logger.Logger
	SessionSecret     string
	SecureCookies     bool
	Idempotency       idempotency.Gateway
	LowStockThreshold int
	PermissionTTL     time.Duration
	LoginPerMinute    int
	PhoneRegion       string
}

// App is the root http.Handler of the back office.
type App struct {
	mux      *http.ServeMux
	handler  http.Handler
	log      *logger.Logger
	Sessions *auth.Sessions
	Gate     *policy.Gate
}

// NewApp creates the application with all routes configured.
func NewApp(d Deps) *App {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Idempotency == nil {
		d.Idempotency = idempotency.NewMemory(24 * time.Hour)
	}
	if d.PermissionTTL <= 0 {
		d.PermissionTTL = time.Minute
	}
	gate := policy.NewGate(d.DB, d.PermissionTTL)
	users := services.NewUserService(d.DB, gate, d.Log)
	sessions := auth.NewSessions(d.SessionSecret, users.Active)
	sessions.Secure = d.SecureCookies

	a := &App{mux: http.NewServeMux(), log: d.Log, Sessions: sessions, Gate: gate}
	a.setupRoutes(d, users)
	a.handler = withRecover(d.Log, requestid.Middleware(tracing.Middleware(metrics.Middleware(
		a.withLogging(sessions.Middleware(a.mux))))))
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *App) setupRoutes(d Deps, users *services.UserService) {
	docs := services.NewDocumentService(d.DB, d.Log)
	catalog := services.NewCatalogService(d.DB, d.Log, d.LowStockThreshold)

	ah := handlers.NewAuthHandler(d.DB, users, a.Sessions, d.Log)
	ch := handlers.NewCatalogHandler(catalog)
	ih := handlers.NewInventoryHandler(services.NewInventoryService(d.DB, d.Log))
	ph := handlers.NewPartyHandler(services.NewPartyService(d.DB, d.Log).WithPhoneRegion(d.PhoneRegion))
	rh := handlers.NewReceptionHandler(services.NewReceptionService(d.DB, docs, d.Log))
	qh := handlers.NewDocumentHandler(models.KindQuote, docs, d.Idempotency, d.Log)
	sh := handlers.NewDocumentHandler(models.KindSale, docs, d.Idempotency, d.Log)
	rep := handlers.NewReportHandler(services.NewReportService(d.DB, d.LowStockThreshold))
	seth := handlers.NewSettingsHandler(services.NewSettingsService(d.DB, d.Log))
	uh := handlers.NewUserHandler(users)

	// Public
	a.mux.HandleFunc("GET /health", handlers.Health)
	a.mux.Handle("GET /healthz", handlers.Healthz(d.DB))
	a.mux.Handle("GET /metrics", metrics.Handler())
	a.mux.Handle("POST /auth/login", httpx.NewLoginRateLimiter(d.LoginPerMinute, d.Log).Middleware(http.HandlerFunc(ah.Login)))

	// Authenticated
	a.mux.Handle("POST /auth/logout", a.requireAuth(http.HandlerFunc(ah.Logout)))
	a.mux.Handle("GET /auth/me", a.requireAuth(http.HandlerFunc(ah.Me)))
	a.mux.Handle("GET /settings", a.requireAuth(http.HandlerFunc(seth.Get)))

	// Catalog
	a.guard("GET /products", "catalog", policy.ActionList, ch.ListProducts)
	a.guard("POST /products", "catalog", policy.ActionCreate, ch.CreateProduct)
	a.guard("GET /products/{id}", "catalog", policy.ActionView, ch.GetProduct)
	a.guard("PUT /products/{id}", "catalog", policy.ActionUpdate, ch.UpdateProduct)
	a.guard("DELETE /products/{id}", "catalog", policy.ActionDelete, ch.DeleteProduct)
	a.guard("GET /services", "catalog", policy.ActionList, ch.ListServices)
	a.guard("POST /services", "catalog", policy.ActionCreate, ch.CreateService)
	a.guard("GET /services/{id}", "catalog", policy.ActionView, ch.GetService)
	a.guard("PUT /services/{id}", "catalog", policy.ActionUpdate, ch.UpdateService)
	a.guard("DELETE /services/{id}", "catalog", policy.ActionDelete, ch.DeleteService)
	a.guard("GET /units", "catalog", policy.ActionList, ch.ListUnits)
	a.guard("POST /units", "catalog", policy.ActionCreate, ch.CreateUnit)
	a.guard("PUT /units/{id}", "catalog", policy.ActionUpdate, ch.UpdateUnit)
	a.guard("DELETE /units/{id}", "catalog", policy.ActionDelete, ch.DeleteUnit)
	a.guard("GET /currencies", "catalog", policy.ActionList, ch.ListCurrencies)
	a.guard("POST /currencies", "catalog", policy.ActionCreate, ch.CreateCurrency)
	a.guard("PUT /currencies/{id}", "catalog", policy.ActionUpdate, ch.UpdateCurrency)
	a.guard("DELETE /currencies/{id}", "catalog", policy.ActionDelete, ch.DeleteCurrency)

	// Inventory
	a.guard("POST /inventory/{id}/adjust", "inventory", policy.ActionUpdate, ih.Adjust)
	a.guard("POST /inventory/{id}/count", "inventory", policy.ActionUpdate, ih.Count)
	a.guard("GET /inventory/movements", "inventory", policy.ActionView, ih.Movements)

	// Clients and mechanics
	a.guard("GET /clients", "client", policy.ActionList, ph.ListClients)
	a.guard("POST /clients", "client", policy.ActionCreate, ph.CreateClient)
	a.guard("GET /clients/{id}", "client", policy.ActionView, ph.GetClient)
	a.guard("PUT /clients/{id}", "client", policy.ActionUpdate, ph.UpdateClient)
	a.guard("DELETE /clients/{id}", "client", policy.ActionDelete, ph.DeleteClient)
	a.guard("GET /mechanics", "mechanic", policy.ActionList, ph.ListMechanics)
	a.guard("POST /mechanics", "mechanic", policy.ActionCreate, ph.CreateMechanic)
	a.guard("GET /mechanics/{id}", "mechanic", policy.ActionView, ph.GetMechanic)
	a.guard("PUT /mechanics/{id}", "mechanic", policy.ActionUpdate, ph.UpdateMechanic)
	a.guard("DELETE /mechanics/{id}", "mechanic", policy.ActionDelete, ph.DeleteMechanic)

	// Receptions
	a.guard("GET /receptions", "reception", policy.ActionList, rh.List)
	a.guard("POST /receptions", "reception", policy.ActionCreate, rh.Create)
	a.guard("GET /receptions/{id}", "reception", policy.ActionView, rh.Get)
	a.guard("PUT /receptions/{id}", "reception", policy.ActionUpdate, rh.Update)
	a.guard("PATCH /receptions/{id}/status", "reception", policy.ActionUpdate, rh.Advance)
	a.guard("POST /receptions/{id}/quote", "quote", policy.ActionCreate, rh.CreateQuote)

	// Quotes and sales
	a.documentRoutes("quotes", string(models.KindQuote), qh)
	a.documentRoutes("sales", string(models.KindSale), sh)
	a.guard("POST /quotes/{id}/convert", "sale", policy.ActionCreate, qh.Convert)

	// Reports
	a.guard("GET /reports/sales", "report", policy.ActionView, rep.Sales)
	a.guard("GET /reports/top-products", "report", policy.ActionView, rep.TopProducts)
	a.guard("GET /reports/low-stock", "report", policy.ActionView, rep.LowStock)
	a.guard("GET /reports/mechanics", "report", policy.ActionView, rep.Mechanics)

	// Admin
	a.mux.Handle("POST /settings", a.requireAdmin(http.HandlerFunc(seth.Setup)))
	a.mux.Handle("PUT /settings", a.requireAdmin(http.HandlerFunc(seth.Update)))
	a.mux.Handle("GET /users", a.requireAdmin(http.HandlerFunc(uh.List)))
	a.mux.Handle("POST /users", a.requireAdmin(http.HandlerFunc(uh.Create)))
	a.mux.Handle("PATCH /users/{id}", a.requireAdmin(http.HandlerFunc(uh.SetRole)))
}

// documentRoutes registers the routes shared by quotes and sales.
func (a *App) documentRoutes(prefix, resource string, h *handlers.DocumentHandler) {
	base := "/" + prefix
	a.guard("GET "+base, resource, policy.ActionList, h.List)
	a.guard("POST "+base, resource, policy.ActionCreate, h.Create)
	a.guard("GET "+base+"/{id}", resource, policy.ActionView, h.Get)
	a.guard("PUT "+base+"/{id}", resource, policy.ActionUpdate, h.Update)
	a.guard("DELETE "+base+"/{id}", resource, policy.ActionDelete, h.Delete)
	a.guard("PATCH "+base+"/{id}/status", resource, policy.ActionApprove, h.Transition)
	a.guard("GET "+base+"/{id}/totals", resource, policy.ActionView, h.Totals)
	a.guard("GET "+base+"/{id}/movements", resource, policy.ActionView, h.Movements)
}

func (a *App) guard(pattern, resource string, action policy.Action, h http.HandlerFunc) {
	a.mux.Handle(pattern, a.requireAuth(a.requirePermission(resource, action)(h)))
}

// requireAuth answers 401 unless the session belongs to an active user.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return a.Sessions.RequireAuth(next)
}

// requireAdmin only lets "*:*" holders through.
func (a *App) requireAdmin(next http.Handler) http.Handler {
	return a.requireAuth(a.Gate.RequireAdmin()(next))
}

func (a *App) requirePermission(resourceType string, action policy.Action) func(http.Handler) http.Handler {
	return a.Gate.RequirePermission(resourceType, action)
}

func (a *App) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := httpx.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)
		a.log.WithContext(r.Context()).HTTPRequest(r.Method, r.URL.Path, rec.Status,
			float64(time.Since(start).Microseconds())/1000, r.RemoteAddr)
	})
}

func withRecover(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithContext(r.Context()).Error("panic", "path", r.URL.Path, "recovered", rec)
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
