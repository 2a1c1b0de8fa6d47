// Package store implements the stock gateway on top of GORM.
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
	"gorm.io/gorm/clause"
)

// Store is a stock.Gateway backed by a relational database. Stock changes are
// conditional UPDATE statements, so concurrent approvals never oversell.
type Store struct {
	db   *gorm.DB
	lock bool
}

var _ stock.Gateway = (*Store)(nil)

func New(db *gorm.DB) *Store { return &Store{db: db} }

// DB exposes the handle, scoped to the current transaction when inside WithinTx.
func (s *Store) DB() *gorm.DB { return s.db }

// ForUpdate returns a store that locks the document rows it reads until the
// surrounding transaction ends. Use it only on a transaction handle.
func (s *Store) ForUpdate() *Store { return &Store{db: s.db, lock: true} }

// WithinTx runs fn in a transaction. Documents read through the gateway are
// locked, so lines cannot change between reading them and moving stock.
func (s *Store) WithinTx(ctx context.Context, fn func(stock.Gateway) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, lock: true})
	})
}

func (s *Store) Find(ctx context.Context, kind models.ItemKind, id uint) (models.CatalogItem, error) {
	db := s.db.WithContext(ctx)
	switch kind {
	case models.KindProduct:
		var p models.Product
		err := db.Preload("Currency").First(&p, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CatalogItem{}, fmt.Errorf("product %d: %w", id, pricing.ErrReferenceNotFound)
		}
		if err != nil {
			return models.CatalogItem{}, err
		}
		return p.CatalogItem(), nil
	case models.KindService:
		var svc models.Service
		err := db.First(&svc, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CatalogItem{}, fmt.Errorf("service %d: %w", id, pricing.ErrReferenceNotFound)
		}
		if err != nil {
			return models.CatalogItem{}, err
		}
		return svc.CatalogItem(), nil
	}
	return models.CatalogItem{}, fmt.Errorf("kind %q: %w", kind, pricing.ErrReferenceNotFound)
}

func (s *Store) Document(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	err := documentQuery(s.db.WithContext(ctx), s.lock).First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, stock.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// documentQuery loads a document with its lines. With lock set the document
// row is read with SELECT ... FOR UPDATE. The SQLite dialect drops the clause
// since SQLite serializes writers anyway.
func documentQuery(db *gorm.DB, lock bool) *gorm.DB {
	q := db.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") })
	if lock {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return q
}

// SaveDocument inserts doc, issuing its number, or replaces the stored
// document and all of its lines.
func (s *Store) SaveDocument(ctx context.Context, doc *models.Document) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if doc.Number == "" {
			seq, err := nextNumber(tx, doc.Kind)
			if err != nil {
				return err
			}
			doc.Number = models.FormatNumber(doc.Kind, seq)
		}
		for i := range doc.Lines {
			doc.Lines[i].Position = i
		}

		if doc.ID == 0 {
			return tx.Create(doc).Error
		}

		var count int64
		if err := tx.Model(&models.Document{}).Where("id = ?", doc.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return stock.ErrDocumentNotFound
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Omit("Lines", "Client", "Mechanic").Save(doc).Error; err != nil {
			return err
		}
		if len(doc.Lines) == 0 {
			return nil
		}
		for i := range doc.Lines {
			doc.Lines[i].ID = 0
			doc.Lines[i].DocumentID = doc.ID
		}
		return tx.Create(&doc.Lines).Error
	})
}

// nextNumber bumps the per-kind counter. The UPDATE takes a row lock, so two
// transactions never receive the same number.
func nextNumber(tx *gorm.DB, kind models.DocumentKind) (int64, error) {
	seq := models.DocumentSequence{Kind: kind}
	if err := tx.FirstOrCreate(&seq, models.DocumentSequence{Kind: kind}).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&models.DocumentSequence{}).Where("kind = ?", kind).
		UpdateColumn("last", gorm.Expr("last + 1")).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("kind = ?", kind).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.Last, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uint, from, to models.DocumentStatus, approvedAt *time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "approved_at": approvedAt, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, documentExists(s.db.WithContext(ctx), id)
	}
	return true, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id uint, status models.DocumentStatus) (bool, error) {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, status).Delete(&models.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return documentExists(tx, id)
		}
		deleted = true
		return tx.Where("document_id = ?", id).Delete(&models.LineItem{}).Error
	})
	return deleted, err
}

func documentExists(db *gorm.DB, id uint) error {
	var count int64
	if err := db.Model(&models.Document{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return stock.ErrDocumentNotFound
	}
	return nil
}
