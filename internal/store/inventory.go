package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/pricing"
	"github.com/maremotors/backoffice/internal/stock"
	"gorm.io/gorm"
)

// Decrement removes qty units from a product only if that many are available.
func (s *Store) Decrement(ctx context.Context, productID uint, qty int, m stock.Movement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", productID, qty).
			UpdateColumns(map[string]any{"stock": gorm.Expr("stock - ?", qty), "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("product %d: %w", productID, pricing.ErrReferenceNotFound)
			}
			return stock.ErrInsufficientStock
		}
		return record(tx, productID, -qty, m)
	})
}

// Increment returns qty units to a product, including one that was deleted
// from the catalog after the stock left.
func (s *Store) Increment(ctx context.Context, productID uint, qty int, m stock.Movement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Model(&models.Product{}).
			Where("id = ?", productID).
			UpdateColumns(map[string]any{"stock": gorm.Expr("stock + ?", qty), "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product %d: %w", productID, pricing.ErrReferenceNotFound)
		}
		return record(tx, productID, qty, m)
	})
}

// SaveCatalogItem stores the price of a product or service and, for products,
// the counted stock. The stock write is a compare-and-set against the value
// read in the same transaction.
func (s *Store) SaveCatalogItem(ctx context.Context, item *models.CatalogItem, m stock.Movement) error {
	if item.Kind == models.KindService {
		res := s.db.WithContext(ctx).Model(&models.Service{}).Where("id = ?", item.ID).Update("price", item.UnitPrice)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("service %d: %w", item.ID, pricing.ErrReferenceNotFound)
		}
		return nil
	}
	if item.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", pricing.ErrInvalidQuantity)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.Select("id", "stock").First(&p, item.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", item.ID, pricing.ErrReferenceNotFound)
			}
			return err
		}
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock = ?", item.ID, p.Stock).
			UpdateColumns(map[string]any{"unit_price": item.UnitPrice, "stock": item.Stock, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return stock.ErrConcurrentUpdate
		}
		if delta := item.Stock - p.Stock; delta != 0 {
			return record(tx, item.ID, delta, m)
		}
		return nil
	})
}

func record(tx *gorm.DB, productID uint, delta int, m stock.Movement) error {
	var after int
	if err := tx.Unscoped().Model(&models.Product{}).Where("id = ?", productID).Select("stock").Scan(&after).Error; err != nil {
		return err
	}
	mv := models.StockMovement{
		ProductID:  productID,
		Delta:      delta,
		StockAfter: after,
		Reason:     m.Reason,
		DocumentID: m.DocumentID,
		UserID:     m.UserID,
		Note:       m.Note,
	}
	return tx.Create(&mv).Error
}

// Movements lists ledger entries, newest first, optionally for one product.
func (s *Store) Movements(ctx context.Context, productID uint, limit, offset int) ([]models.StockMovement, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.StockMovement{})
	if productID != 0 {
		q = q.Where("product_id = ?", productID)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q = q.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var out []models.StockMovement
	err := q.Find(&out).Error
	return out, total, err
}
