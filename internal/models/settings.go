package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings is the single-row company configuration.
type Settings struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	BusinessName      string          `gorm:"size:255;not null" json:"business_name"`
	TaxID             string          `gorm:"size:40" json:"tax_id,omitempty"`
	Address           string          `gorm:"size:255" json:"address,omitempty"`
	Phone             string          `gorm:"size:40" json:"phone,omitempty"`
	Email             string          `gorm:"size:255" json:"email,omitempty"`
	BaseCurrency      string          `gorm:"size:3;not null;default:'USD'" json:"base_currency"`
	QuoteValidityDays int             `gorm:"not null;default:15" json:"quote_validity_days"`
	MaxDiscount       decimal.Decimal `gorm:"type:numeric(5,2);not null;default:100" json:"max_discount"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
