package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind tells quotes and sales apart. Both share the same table and lifecycle.
type DocumentKind string

const (
	KindQuote DocumentKind = "quote"
	KindSale  DocumentKind = "sale"
)

func (k DocumentKind) Valid() bool {
	return k == KindQuote || k == KindSale
}

// NumberPrefix is the prefix of human-readable document numbers.
func (k DocumentKind) NumberPrefix() string {
	if k == KindSale {
		return "S"
	}
	return "Q"
}

// MoneyScale is the number of decimals stored for computed money: captured unit
// prices, line amounts and document totals. Percentages carry at most two.
const MoneyScale = 6

// DocumentStatus is the lifecycle state driven by the stock reconciler.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusApproved DocumentStatus = "approved"
	StatusArchived DocumentStatus = "archived"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusArchived:
		return true
	}
	return false
}

// Document is a quote or a sale. Total is derived from Lines and Discount
// and is recomputed on every mutation.
type Document struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Kind          DocumentKind    `gorm:"size:16;not null;uniqueIndex:idx_document_number,priority:1" json:"kind"`
	Number        string          `gorm:"size:20;not null;uniqueIndex:idx_document_number,priority:2" json:"number"`
	Status        DocumentStatus  `gorm:"size:16;not null;index" json:"status"`
	ClientID      uint            `gorm:"not null;index" json:"client_id"`
	Client        *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	MechanicID    *uint           `gorm:"index" json:"mechanic_id,omitempty"`
	Mechanic      *Mechanic       `gorm:"foreignKey:MechanicID" json:"mechanic,omitempty"`
	ReceptionID   *uint           `gorm:"index" json:"reception_id,omitempty"`
	SourceQuoteID *uint           `gorm:"index" json:"source_quote_id,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	Discount      decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount"`
	Total         decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0" json:"total"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
	Lines         []LineItem      `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"lines"`
	// Warnings raised by the last pricing of the document. Not stored.
	Warnings []string `gorm:"-" json:"warnings,omitempty"`
}

func (d *Document) IsPending() bool  { return d.Status == StatusPending }
func (d *Document) IsApproved() bool { return d.Status == StatusApproved }

// CanEdit returns true while lines and discount may still change.
func (d *Document) CanEdit() bool {
	return d.Status == StatusPending
}

// FormatNumber renders the sequence number for a kind, e.g. Q-000042.
func FormatNumber(kind DocumentKind, seq int64) string {
	return fmt.Sprintf("%s-%06d", kind.NumberPrefix(), seq)
}

// LineItem references exactly one catalog entry matching Kind. Description and
// UnitPrice are captured when the line is priced; UnitPrice is in base currency.
type LineItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	DocumentID  uint            `gorm:"not null;index" json:"document_id"`
	Position    int             `gorm:"not null" json:"position"`
	Kind        ItemKind        `gorm:"size:16;not null" json:"kind"`
	ProductID   *uint           `gorm:"index" json:"product_id,omitempty"`
	ServiceID   *uint           `gorm:"index" json:"service_id,omitempty"`
	Description string          `gorm:"size:255" json:"description"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0" json:"unit_price"`
	Discount    decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0" json:"amount"`
}

// Ref returns the referenced catalog id. ok is false when the reference does not
// match Kind: none set, both set, or the wrong one set.
func (l LineItem) Ref() (id uint, ok bool) {
	switch l.Kind {
	case KindProduct:
		if l.ProductID != nil && l.ServiceID == nil && *l.ProductID != 0 {
			return *l.ProductID, true
		}
	case KindService:
		if l.ServiceID != nil && l.ProductID == nil && *l.ServiceID != 0 {
			return *l.ServiceID, true
		}
	}
	return 0, false
}

// ProductQuantities sums quantities per product across product lines.
func ProductQuantities(lines []LineItem) map[uint]int {
	out := make(map[uint]int)
	for _, l := range lines {
		if l.Kind != KindProduct {
			continue
		}
		if id, ok := l.Ref(); ok {
			out[id] += l.Quantity
		}
	}
	return out
}

// DocumentSequence holds the last number issued per document kind.
type DocumentSequence struct {
	Kind DocumentKind `gorm:"primaryKey;size:16"`
	Last int64        `gorm:"not null;default:0"`
}
