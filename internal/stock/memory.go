package stock

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/pricing"
)

type itemKey struct {
	kind models.ItemKind
	id   uint
}

// MemoryGateway is an in-process Gateway. One mutex guards all state and is
// held for the whole of a WithinTx call, which makes transactions serial.
type MemoryGateway struct {
	mu sync.Mutex
	st *memState
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{st: &memState{
		items: make(map[itemKey]models.CatalogItem),
		docs:  make(map[uint]*models.Document),
		seq:   make(map[models.DocumentKind]int64),
	}}
}

// PutItem adds or replaces a catalog item.
func (m *MemoryGateway) PutItem(item models.CatalogItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.items[itemKey{item.Kind, item.ID}] = item
}

// Stock returns the current stock of a product, or -1 when it is unknown.
func (m *MemoryGateway) Stock(productID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.st.items[itemKey{models.KindProduct, productID}]
	if !ok {
		return -1
	}
	return item.Stock
}

// Movements returns a copy of the stock ledger.
func (m *MemoryGateway) Movements() []models.StockMovement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.StockMovement(nil), m.st.movements...)
}

func (m *MemoryGateway) Find(ctx context.Context, kind models.ItemKind, id uint) (models.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Find(ctx, kind, id)
}

func (m *MemoryGateway) Document(ctx context.Context, id uint) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Document(ctx, id)
}

func (m *MemoryGateway) SaveDocument(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveDocument(ctx, doc)
}

func (m *MemoryGateway) UpdateStatus(ctx context.Context, id uint, from, to models.DocumentStatus, approvedAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UpdateStatus(ctx, id, from, to, approvedAt)
}

func (m *MemoryGateway) DeleteDocument(ctx context.Context, id uint, status models.DocumentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.DeleteDocument(ctx, id, status)
}

func (m *MemoryGateway) SaveCatalogItem(ctx context.Context, item *models.CatalogItem, mv Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveCatalogItem(ctx, item, mv)
}

func (m *MemoryGateway) Decrement(ctx context.Context, productID uint, qty int, mv Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Decrement(ctx, productID, qty, mv)
}

func (m *MemoryGateway) Increment(ctx context.Context, productID uint, qty int, mv Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Increment(ctx, productID, qty, mv)
}

// WithinTx holds the lock for the duration of fn and restores a snapshot of
// all state when fn fails.
func (m *MemoryGateway) WithinTx(ctx context.Context, fn func(Gateway) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// memState is the unlocked state. It doubles as the transactional view.
type memState struct {
	items     map[itemKey]models.CatalogItem
	docs      map[uint]*models.Document
	movements []models.StockMovement
	seq       map[models.DocumentKind]int64
	nextDoc   uint
	nextLine  uint
}

func cloneDocument(d *models.Document) *models.Document {
	out := *d
	out.Lines = append([]models.LineItem(nil), d.Lines...)
	return &out
}

func (s *memState) clone() *memState {
	docs := make(map[uint]*models.Document, len(s.docs))
	for id, d := range s.docs {
		docs[id] = cloneDocument(d)
	}
	return &memState{
		items:     maps.Clone(s.items),
		docs:      docs,
		movements: append([]models.StockMovement(nil), s.movements...),
		seq:       maps.Clone(s.seq),
		nextDoc:   s.nextDoc,
		nextLine:  s.nextLine,
	}
}

func (s *memState) Find(_ context.Context, kind models.ItemKind, id uint) (models.CatalogItem, error) {
	item, ok := s.items[itemKey{kind, id}]
	if !ok {
		return models.CatalogItem{}, fmt.Errorf("%s %d: %w", kind, id, pricing.ErrReferenceNotFound)
	}
	return item, nil
}

func (s *memState) Document(_ context.Context, id uint) (*models.Document, error) {
	d, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return cloneDocument(d), nil
}

func (s *memState) SaveDocument(_ context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	if doc.ID == 0 {
		s.nextDoc++
		doc.ID = s.nextDoc
		doc.CreatedAt = now
	} else if _, ok := s.docs[doc.ID]; !ok {
		return ErrDocumentNotFound
	}
	if doc.Number == "" {
		s.seq[doc.Kind]++
		doc.Number = models.FormatNumber(doc.Kind, s.seq[doc.Kind])
	}
	for i := range doc.Lines {
		if doc.Lines[i].ID == 0 {
			s.nextLine++
			doc.Lines[i].ID = s.nextLine
		}
		doc.Lines[i].DocumentID = doc.ID
	}
	doc.UpdatedAt = now
	s.docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *memState) UpdateStatus(_ context.Context, id uint, from, to models.DocumentStatus, approvedAt *time.Time) (bool, error) {
	d, ok := s.docs[id]
	if !ok {
		return false, ErrDocumentNotFound
	}
	if d.Status != from {
		return false, nil
	}
	d.Status = to
	d.ApprovedAt = approvedAt
	d.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *memState) DeleteDocument(_ context.Context, id uint, status models.DocumentStatus) (bool, error) {
	d, ok := s.docs[id]
	if !ok {
		return false, ErrDocumentNotFound
	}
	if d.Status != status {
		return false, nil
	}
	delete(s.docs, id)
	return true, nil
}

func (s *memState) SaveCatalogItem(_ context.Context, item *models.CatalogItem, mv Movement) error {
	key := itemKey{item.Kind, item.ID}
	prev, ok := s.items[key]
	if !ok {
		return fmt.Errorf("%s %d: %w", item.Kind, item.ID, pricing.ErrReferenceNotFound)
	}
	if item.Kind == models.KindProduct && item.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", pricing.ErrInvalidQuantity)
	}
	s.items[key] = *item
	if item.Kind == models.KindProduct && item.Stock != prev.Stock {
		s.record(item.ID, item.Stock-prev.Stock, item.Stock, mv)
	}
	return nil
}

func (s *memState) Decrement(_ context.Context, productID uint, qty int, mv Movement) error {
	key := itemKey{models.KindProduct, productID}
	item, ok := s.items[key]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, pricing.ErrReferenceNotFound)
	}
	if item.Stock < qty {
		return ErrInsufficientStock
	}
	item.Stock -= qty
	s.items[key] = item
	s.record(productID, -qty, item.Stock, mv)
	return nil
}

func (s *memState) Increment(_ context.Context, productID uint, qty int, mv Movement) error {
	key := itemKey{models.KindProduct, productID}
	item, ok := s.items[key]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, pricing.ErrReferenceNotFound)
	}
	item.Stock += qty
	s.items[key] = item
	s.record(productID, qty, item.Stock, mv)
	return nil
}

func (s *memState) WithinTx(_ context.Context, fn func(Gateway) error) error {
	return fn(s)
}

func (s *memState) record(productID uint, delta, after int, mv Movement) {
	s.movements = append(s.movements, models.StockMovement{
		ID:         uint(len(s.movements) + 1),
		ProductID:  productID,
		Delta:      delta,
		StockAfter: after,
		Reason:     mv.Reason,
		DocumentID: mv.DocumentID,
		UserID:     mv.UserID,
		Note:       mv.Note,
		CreatedAt:  time.Now().UTC(),
	})
}
