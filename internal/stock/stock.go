// Package stock reconciles product stock with the lifecycle of quotes and sales.
//
// A document holds stock while it is approved, or archived after approval. The
// Reconciler is the only place that moves a document between states, and every
// state change and its stock effect are applied in one gateway transaction.
package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/pricing"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDocumentNotFound  = errors.New("document not found")

	// ErrConcurrentUpdate is returned when stored state changed between the
	// read and the conditional write of one operation.
	ErrConcurrentUpdate = errors.New("changed concurrently")
)

// Shortage describes one product line that cannot be served.
type Shortage struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError lists every short product of a rejected approval.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.Name, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Movement tags a stock change for the inventory ledger.
type Movement struct {
	Reason     string
	DocumentID *uint
	UserID     *uint
	Note       string
}

// Gateway is the persistence boundary of the reconciler.
//
// Decrement must be atomic per product: it fails with ErrInsufficientStock,
// leaving the stock untouched, when fewer than qty units are available.
// UpdateStatus writes status and approval time only if the stored status is
// still from, and reports whether it did. DeleteDocument follows the same rule.
type Gateway interface {
	pricing.Lookup

	Document(ctx context.Context, id uint) (*models.Document, error)
	SaveDocument(ctx context.Context, doc *models.Document) error
	UpdateStatus(ctx context.Context, id uint, from, to models.DocumentStatus, approvedAt *time.Time) (bool, error)
	DeleteDocument(ctx context.Context, id uint, status models.DocumentStatus) (bool, error)

	SaveCatalogItem(ctx context.Context, item *models.CatalogItem, m Movement) error
	Decrement(ctx context.Context, productID uint, qty int, m Movement) error
	Increment(ctx context.Context, productID uint, qty int, m Movement) error

	// WithinTx runs fn against a transactional view. Any error rolls back
	// everything fn did.
	WithinTx(ctx context.Context, fn func(Gateway) error) error
}

// HoldsStock reports whether deleting doc must return stock. Archived documents
// keep their consumption: the goods have left the shop.
func HoldsStock(doc *models.Document) bool {
	return doc.Status == models.StatusApproved
}
