package services

import (
	"context"
	"errors"
	"strings"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/stock"
	"github.com/maremotors/backoffice/internal/store"
	"github.com/maremotors/backoffice/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductInput creates or updates a product. Stock is only read on creation;
// later changes go through the inventory service.
type ProductInput struct {
	Code        string          `json:"code" validate:"required,code"`
	Name        string          `json:"name" validate:"required,max=255"`
	Brand       string          `json:"brand" validate:"max=120"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	CurrencyID  *uint           `json:"currency_id,omitempty"`
	UnitID      *uint           `json:"unit_id,omitempty"`
	Stock       int             `json:"stock" validate:"gte=0"`
	MinStock    int             `json:"min_stock" validate:"gte=0"`
}

// ServiceInput creates or updates a service. A negative price models a credit line.
type ServiceInput struct {
	Code           string          `json:"code" validate:"required,code"`
	Name           string          `json:"name" validate:"required,max=255"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	EstimatedHours decimal.Decimal `json:"estimated_hours" validate:"gte=0"`
}

type UnitInput struct {
	Name   string `json:"name" validate:"required,max=60"`
	Symbol string `json:"symbol" validate:"max=12"`
}

type CurrencyInput struct {
	Code         string          `json:"code" validate:"required,len=3,alpha"`
	Name         string          `json:"name" validate:"required,max=60"`
	Symbol       string          `json:"symbol" validate:"max=8"`
	ExchangeRate decimal.Decimal `json:"exchange_rate" validate:"gt=0"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Query    string
	LowStock bool
	Limit    int
	Offset   int
}

// CatalogService manages products, services, units and currencies.
type CatalogService struct {
	db                *gorm.DB
	validate          *validation.Validator
	log               *logger.Logger
	lowStockThreshold int
}

func NewCatalogService(db *gorm.DB, log *logger.Logger, lowStockThreshold int) *CatalogService {
	return &CatalogService{db: db, validate: validation.New(), log: log, lowStockThreshold: lowStockThreshold}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *CatalogService) checkProductRefs(ctx context.Context, in ProductInput) error {
	if in.CurrencyID != nil {
		if err := exists(ctx, s.db, &models.Currency{}, *in.CurrencyID); err != nil {
			return apperr.Validation("currency_not_found")
		}
	}
	if in.UnitID != nil {
		if err := exists(ctx, s.db, &models.Unit{}, *in.UnitID); err != nil {
			return apperr.Validation("unit_not_found")
		}
	}
	return nil
}

// lowStockClause matches products at or below their own minimum, or the
// threshold when they have none.
func lowStockClause(db *gorm.DB, threshold int) *gorm.DB {
	return db.Where("stock <= CASE WHEN min_stock > 0 THEN min_stock ELSE ? END", threshold)
}

func (s *CatalogService) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ? OR LOWER(brand) LIKE ?", like, like, like)
	}
	if f.LowStock {
		q = lowStockClause(q, s.lowStockThreshold)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domainError("catalog.list_products", err)
	}
	var products []models.Product
	if err := q.Preload("Currency").Preload("Unit").Order("name").Scopes(paginate(f.Limit, f.Offset)).Find(&products).Error; err != nil {
		return nil, 0, domainError("catalog.list_products", err)
	}
	return products, total, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Preload("Currency").Preload("Unit").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product_not_found")
	}
	if err != nil {
		return nil, domainError("catalog.get_product", err)
	}
	return &p, nil
}

// CreateProduct stores a product and records its opening stock as a movement.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	const op = "catalog.create_product"
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	if err := s.checkProductRefs(ctx, in); err != nil {
		return nil, err
	}
	p := models.Product{
		Code:        normalizeCode(in.Code),
		Name:        strings.TrimSpace(in.Name),
		Brand:       in.Brand,
		Description: in.Description,
		UnitPrice:   in.UnitPrice,
		CurrencyID:  in.CurrencyID,
		UnitID:      in.UnitID,
		MinStock:    in.MinStock,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		if in.Stock > 0 {
			m := stock.Movement{Reason: models.MovementInitial, UserID: auth.Actor(ctx)}
			if err := store.New(tx).Increment(ctx, p.ID, in.Stock, m); err != nil {
				return err
			}
		}
		return writeAudit(ctx, tx, "product", p.ID, "create", "", p.Code)
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("code_already_exists").WithOp(op)
		}
		return nil, domainError(op, err)
	}
	s.log.WithContext(ctx).Info("product created", "id", p.ID, "code", p.Code, "stock", in.Stock)
	return s.GetProduct(ctx, p.ID)
}

// UpdateProduct changes descriptive fields and price. Stock is left untouched.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	const op = "catalog.update_product"
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	if err := s.checkProductRefs(ctx, in); err != nil {
		return nil, err
	}
	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	before := current.UnitPrice.String()
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		Select("code", "name", "brand", "description", "unit_price", "currency_id", "unit_id", "min_stock").
		Updates(&models.Product{
			Code:        normalizeCode(in.Code),
			Name:        strings.TrimSpace(in.Name),
			Brand:       in.Brand,
			Description: in.Description,
			UnitPrice:   in.UnitPrice,
			CurrencyID:  in.CurrencyID,
			UnitID:      in.UnitID,
			MinStock:    in.MinStock,
		})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return nil, apperr.Conflict("code_already_exists").WithOp(op)
		}
		return nil, domainError(op, res.Error)
	}
	if !in.UnitPrice.Equal(current.UnitPrice) {
		if err := writeAudit(ctx, s.db, "product", id, "price", before, in.UnitPrice.String()); err != nil {
			s.log.WithContext(ctx).DatabaseError("audit", err)
		}
	}
	return s.GetProduct(ctx, id)
}

// DeleteProduct soft-deletes a product. Documents keep their captured lines
// and stock can still be returned to it.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return domainError("catalog.delete_product", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product_not_found")
	}
	s.log.WithContext(ctx).Info("product deleted", "id", id)
	return nil
}

func (s *CatalogService) ListServices(ctx context.Context, query string, limit, offset int) ([]models.Service, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Service{})
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domainError("catalog.list_services", err)
	}
	var out []models.Service
	if err := q.Order("name").Scopes(paginate(limit, offset)).Find(&out).Error; err != nil {
		return nil, 0, domainError("catalog.list_services", err)
	}
	return out, total, nil
}

func (s *CatalogService) GetService(ctx context.Context, id uint) (*models.Service, error) {
	var svc models.Service
	err := s.db.WithContext(ctx).First(&svc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("service_not_found")
	}
	if err != nil {
		return nil, domainError("catalog.get_service", err)
	}
	return &svc, nil
}

func (s *CatalogService) CreateService(ctx context.Context, in ServiceInput) (*models.Service, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	svc := models.Service{
		Code:           normalizeCode(in.Code),
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Price:          in.Price,
		EstimatedHours: in.EstimatedHours,
	}
	if err := s.db.WithContext(ctx).Create(&svc).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("code_already_exists")
		}
		return nil, domainError("catalog.create_service", err)
	}
	s.log.WithContext(ctx).Info("service created", "id", svc.ID, "code", svc.Code)
	return &svc, nil
}

func (s *CatalogService) UpdateService(ctx context.Context, id uint, in ServiceInput) (*models.Service, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	svc, err := s.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	svc.Code = normalizeCode(in.Code)
	svc.Name = strings.TrimSpace(in.Name)
	svc.Description = in.Description
	svc.Price = in.Price
	svc.EstimatedHours = in.EstimatedHours
	if err := s.db.WithContext(ctx).Save(svc).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("code_already_exists")
		}
		return nil, domainError("catalog.update_service", err)
	}
	return svc, nil
}

func (s *CatalogService) DeleteService(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Service{}, id)
	if res.Error != nil {
		return domainError("catalog.delete_service", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("service_not_found")
	}
	return nil
}

func (s *CatalogService) ListUnits(ctx context.Context) ([]models.Unit, error) {
	var out []models.Unit
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, domainError("catalog.list_units", err)
	}
	return out, nil
}

func (s *CatalogService) CreateUnit(ctx context.Context, in UnitInput) (*models.Unit, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	u := models.Unit{Name: strings.TrimSpace(in.Name), Symbol: in.Symbol}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, domainError("catalog.create_unit", err)
	}
	return &u, nil
}

func (s *CatalogService) UpdateUnit(ctx context.Context, id uint, in UnitInput) (*models.Unit, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	var u models.Unit
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("unit_not_found")
		}
		return nil, domainError("catalog.update_unit", err)
	}
	u.Name = strings.TrimSpace(in.Name)
	u.Symbol = in.Symbol
	if err := s.db.WithContext(ctx).Save(&u).Error; err != nil {
		return nil, domainError("catalog.update_unit", err)
	}
	return &u, nil
}

// DeleteUnit refuses units still referenced by a product, deleted ones included.
func (s *CatalogService) DeleteUnit(ctx context.Context, id uint) error {
	var refs int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.Product{}).Where("unit_id = ?", id).Count(&refs).Error; err != nil {
		return domainError("catalog.delete_unit", err)
	}
	if refs > 0 {
		return apperr.Conflict("unit_in_use").WithDetails(map[string]int64{"products": refs})
	}
	res := s.db.WithContext(ctx).Delete(&models.Unit{}, id)
	if res.Error != nil {
		return domainError("catalog.delete_unit", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("unit_not_found")
	}
	return nil
}

func (s *CatalogService) ListCurrencies(ctx context.Context) ([]models.Currency, error) {
	var out []models.Currency
	if err := s.db.WithContext(ctx).Order("code").Find(&out).Error; err != nil {
		return nil, domainError("catalog.list_currencies", err)
	}
	return out, nil
}

func (s *CatalogService) CreateCurrency(ctx context.Context, in CurrencyInput) (*models.Currency, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	c := models.Currency{Code: normalizeCode(in.Code), Name: in.Name, Symbol: in.Symbol, ExchangeRate: in.ExchangeRate}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("code_already_exists")
		}
		return nil, domainError("catalog.create_currency", err)
	}
	return &c, nil
}

// UpdateCurrency changes the rate used for future pricing. Stored documents
// keep the prices captured on their lines.
func (s *CatalogService) UpdateCurrency(ctx context.Context, id uint, in CurrencyInput) (*models.Currency, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	var c models.Currency
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("currency_not_found")
		}
		return nil, domainError("catalog.update_currency", err)
	}
	before := c.ExchangeRate.String()
	c.Code = normalizeCode(in.Code)
	c.Name = in.Name
	c.Symbol = in.Symbol
	c.ExchangeRate = in.ExchangeRate
	if err := s.db.WithContext(ctx).Save(&c).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("code_already_exists")
		}
		return nil, domainError("catalog.update_currency", err)
	}
	if before != c.ExchangeRate.String() {
		if err := writeAudit(ctx, s.db, "currency", c.ID, "rate", before, c.ExchangeRate.String()); err != nil {
			s.log.WithContext(ctx).DatabaseError("audit", err)
		}
	}
	return &c, nil
}

// DeleteCurrency refuses the base currency and currencies products are priced in.
func (s *CatalogService) DeleteCurrency(ctx context.Context, id uint) error {
	const op = "catalog.delete_currency"
	var c models.Currency
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("currency_not_found")
		}
		return domainError(op, err)
	}
	settings, err := currentSettings(ctx, s.db)
	if err != nil {
		return err
	}
	if strings.EqualFold(settings.BaseCurrency, c.Code) {
		return apperr.Conflict("base_currency").WithOp(op)
	}
	var refs int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.Product{}).Where("currency_id = ?", id).Count(&refs).Error; err != nil {
		return domainError(op, err)
	}
	if refs > 0 {
		return apperr.Conflict("currency_in_use").WithDetails(map[string]int64{"products": refs})
	}
	if err := s.db.WithContext(ctx).Delete(&c).Error; err != nil {
		return domainError(op, err)
	}
	return nil
}
