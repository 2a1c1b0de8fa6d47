package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemKind distinguishes the two kinds of catalog entries a line can reference.
type ItemKind string

const (
	KindProduct ItemKind = "product"
	KindService ItemKind = "service"
)

func (k ItemKind) Valid() bool {
	return k == KindProduct || k == KindService
}

// Unit of measure for products (piece, liter, hour...).
type Unit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:60;not null;uniqueIndex" json:"name"`
	Symbol    string    `gorm:"size:12" json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Currency a product can be priced in. ExchangeRate converts one unit of this
// currency into the base currency configured in Settings.
type Currency struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Code         string          `gorm:"size:3;not null;uniqueIndex" json:"code"`
	Name         string          `gorm:"size:60;not null" json:"name"`
	Symbol       string          `gorm:"size:8" json:"symbol"`
	ExchangeRate decimal.Decimal `gorm:"type:numeric(18,6);not null;default:1" json:"exchange_rate"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Product is a stocked part. Stock only changes through the inventory store.
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Code        string          `gorm:"size:40;not null;uniqueIndex" json:"code"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Brand       string          `gorm:"size:120" json:"brand,omitempty"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	CurrencyID  *uint           `gorm:"index" json:"currency_id,omitempty"`
	Currency    *Currency       `gorm:"foreignKey:CurrencyID" json:"currency,omitempty"`
	UnitID      *uint           `gorm:"index" json:"unit_id,omitempty"`
	Unit        *Unit           `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	MinStock    int             `gorm:"not null;default:0" json:"min_stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// ExchangeRate returns the rate of the product's currency, 1 when none is loaded.
func (p *Product) ExchangeRate() decimal.Decimal {
	if p.Currency == nil || !p.Currency.ExchangeRate.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return p.Currency.ExchangeRate
}

// IsLowStock reports whether stock is at or below the product's own minimum,
// or the fallback threshold when no minimum is set.
func (p *Product) IsLowStock(fallback int) bool {
	limit := p.MinStock
	if limit <= 0 {
		limit = fallback
	}
	return p.Stock <= limit
}

func (p *Product) CatalogItem() CatalogItem {
	return CatalogItem{
		ID:           p.ID,
		Kind:         KindProduct,
		Code:         p.Code,
		Name:         p.Name,
		UnitPrice:    p.UnitPrice,
		ExchangeRate: p.ExchangeRate(),
		Stock:        p.Stock,
	}
}

// Service is labor or a flat-rate job. It has no stock.
type Service struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Code           string          `gorm:"size:40;not null;uniqueIndex" json:"code"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description,omitempty"`
	Price          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price"`
	EstimatedHours decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0" json:"estimated_hours"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (s *Service) CatalogItem() CatalogItem {
	return CatalogItem{
		ID:           s.ID,
		Kind:         KindService,
		Code:         s.Code,
		Name:         s.Name,
		UnitPrice:    s.Price,
		ExchangeRate: decimal.NewFromInt(1),
	}
}

// CatalogItem is the resolved, storage-independent view of a Product or Service.
// Stock is meaningful for products only.
type CatalogItem struct {
	ID           uint
	Kind         ItemKind
	Code         string
	Name         string
	UnitPrice    decimal.Decimal
	ExchangeRate decimal.Decimal
	Stock        int
}

// BasePrice is the unit price converted to the base currency, at MoneyScale.
func (c CatalogItem) BasePrice() decimal.Decimal {
	rate := c.ExchangeRate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	return c.UnitPrice.Mul(rate).Round(MoneyScale)
}
