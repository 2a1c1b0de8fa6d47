package services

import (
	"context"
	"errors"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/metrics"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/pricing"
	"github.com/maremotors/backoffice/internal/stock"
	"github.com/maremotors/backoffice/internal/store"
	"github.com/maremotors/backoffice/internal/validation"
	"gorm.io/gorm"
)

// AdjustInput is a manual stock correction: received parts, breakage, loss.
type AdjustInput struct {
	Delta  int    `json:"delta" validate:"ne=0"`
	Reason string `json:"reason" validate:"required,max=255"`
}

// CountInput records a physical count. The difference becomes one movement.
type CountInput struct {
	Counted int    `json:"counted" validate:"gte=0"`
	Note    string `json:"note" validate:"max=255"`
}

type InventoryService struct {
	db       *gorm.DB
	store    *store.Store
	validate *validation.Validator
	log      *logger.Logger
}

func NewInventoryService(db *gorm.DB, log *logger.Logger) *InventoryService {
	return &InventoryService{db: db, store: store.New(db), validate: validation.New(), log: log}
}

// Adjust applies a signed delta. Removing more than is on hand fails without
// touching the stock.
func (s *InventoryService) Adjust(ctx context.Context, productID uint, in AdjustInput) (*models.Product, error) {
	const op = "inventory.adjust"
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	m := stock.Movement{Reason: models.MovementManual, UserID: auth.Actor(ctx), Note: in.Reason}
	var err error
	if in.Delta > 0 {
		err = s.store.Increment(ctx, productID, in.Delta, m)
	} else {
		err = s.store.Decrement(ctx, productID, -in.Delta, m)
	}
	if err != nil {
		if errors.Is(err, pricing.ErrReferenceNotFound) {
			return nil, apperr.NotFound("product_not_found").WithOp(op)
		}
		return nil, domainError(op, err)
	}
	metrics.ObserveUnits(-in.Delta)
	s.log.WithContext(ctx).Info("stock adjusted", "product_id", productID, "delta", in.Delta, "reason", in.Reason)
	return s.product(ctx, productID)
}

// Count sets the stock to a counted value. It fails with a conflict when the
// stock moved between reading and writing.
func (s *InventoryService) Count(ctx context.Context, productID uint, in CountInput) (*models.Product, error) {
	const op = "inventory.count"
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	item, err := s.store.Find(ctx, models.KindProduct, productID)
	if err != nil {
		if errors.Is(err, pricing.ErrReferenceNotFound) {
			return nil, apperr.NotFound("product_not_found").WithOp(op)
		}
		return nil, domainError(op, err)
	}
	before := item.Stock
	item.Stock = in.Counted
	m := stock.Movement{Reason: models.MovementManual, UserID: auth.Actor(ctx), Note: in.Note}
	if err := s.store.SaveCatalogItem(ctx, &item, m); err != nil {
		return nil, domainError(op, err)
	}
	metrics.ObserveUnits(before - in.Counted)
	s.log.WithContext(ctx).Info("stock counted", "product_id", productID, "before", before, "counted", in.Counted)
	return s.product(ctx, productID)
}

// Movements lists the ledger, optionally for one product.
func (s *InventoryService) Movements(ctx context.Context, productID uint, limit, offset int) ([]models.StockMovement, int64, error) {
	out, total, err := s.store.Movements(ctx, productID, limit, offset)
	if err != nil {
		return nil, 0, domainError("inventory.movements", err)
	}
	return out, total, nil
}

func (s *InventoryService) product(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Preload("Currency").Preload("Unit").First(&p, id).Error; err != nil {
		return nil, domainError("inventory.product", err)
	}
	return &p, nil
}
