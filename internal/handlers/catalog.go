package handlers

import (
	"net/http"

	"github.com/maremotors/backoffice/internal/httpx"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/services"
)

// CatalogHandler serves products, services, units and currencies.
type CatalogHandler struct {
	svc *services.CatalogService
}

func NewCatalogHandler(svc *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// withID parses {id} and hands it to fn, answering 400 on a bad id.
func withID(fn func(w http.ResponseWriter, r *http.Request, id uint)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.PathID(r, "id")
		if err != nil {
			httpx.Error(w, err)
			return
		}
		fn(w, r, id)
	}
}

func noContent(w http.ResponseWriter, err error) {
	if err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respond[T any](w http.ResponseWriter, v T, err error) {
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Page(r)
	q := r.URL.Query()
	products, total, err := h.svc.ListProducts(r.Context(), services.ProductFilter{
		Query:    q.Get("q"),
		LowStock: q.Get("low_stock") == "1" || q.Get("low_stock") == "true",
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writePage(w, products, total, limit, offset)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		p, err := h.svc.GetProduct(r.Context(), id)
		respond(w, p, err)
	})(w, r)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.ProductInput) (*models.Product, error) {
		return h.svc.CreateProduct(r.Context(), in)
	})
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.ProductInput) (*models.Product, error) {
			return h.svc.UpdateProduct(r.Context(), id, in)
		})
	})(w, r)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		noContent(w, h.svc.DeleteProduct(r.Context(), id))
	})(w, r)
}

func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Page(r)
	out, total, err := h.svc.ListServices(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writePage(w, out, total, limit, offset)
}

func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		s, err := h.svc.GetService(r.Context(), id)
		respond(w, s, err)
	})(w, r)
}

func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.ServiceInput) (*models.Service, error) {
		return h.svc.CreateService(r.Context(), in)
	})
}

func (h *CatalogHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.ServiceInput) (*models.Service, error) {
			return h.svc.UpdateService(r.Context(), id, in)
		})
	})(w, r)
}

func (h *CatalogHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		noContent(w, h.svc.DeleteService(r.Context(), id))
	})(w, r)
}

func (h *CatalogHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.svc.ListUnits(r.Context())
	respond(w, units, err)
}

func (h *CatalogHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.UnitInput) (*models.Unit, error) {
		return h.svc.CreateUnit(r.Context(), in)
	})
}

func (h *CatalogHandler) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.UnitInput) (*models.Unit, error) {
			return h.svc.UpdateUnit(r.Context(), id, in)
		})
	})(w, r)
}

func (h *CatalogHandler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		noContent(w, h.svc.DeleteUnit(r.Context(), id))
	})(w, r)
}

func (h *CatalogHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListCurrencies(r.Context())
	respond(w, out, err)
}

func (h *CatalogHandler) CreateCurrency(w http.ResponseWriter, r *http.Request) {
	decodeAndCall(w, r, http.StatusCreated, func(in services.CurrencyInput) (*models.Currency, error) {
		return h.svc.CreateCurrency(r.Context(), in)
	})
}

func (h *CatalogHandler) UpdateCurrency(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		decodeAndCall(w, r, http.StatusOK, func(in services.CurrencyInput) (*models.Currency, error) {
			return h.svc.UpdateCurrency(r.Context(), id, in)
		})
	})(w, r)
}

func (h *CatalogHandler) DeleteCurrency(w http.ResponseWriter, r *http.Request) {
	withID(func(w http.ResponseWriter, r *http.Request, id uint) {
		noContent(w, h.svc.DeleteCurrency(r.Context(), id))
	})(w, r)
}
