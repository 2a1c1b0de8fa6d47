package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Client owns watercraft brought in for repair and is billed on quotes and sales.
type Client struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:255;not null;index" json:"name"`
	DocumentID string         `gorm:"size:32;index" json:"document_id,omitempty"` // national id or tax id
	Phone      string         `gorm:"size:40" json:"phone,omitempty"`
	Email      string         `gorm:"size:255" json:"email,omitempty"`
	Address    string         `gorm:"size:255" json:"address,omitempty"`
	City       string         `gorm:"size:120" json:"city,omitempty"`
	Notes      string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// FullAddress joins the non-empty address parts.
func (c *Client) FullAddress() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{c.Address, c.City} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Mechanic is assigned to receptions and credited on sales.
type Mechanic struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Name       string          `gorm:"size:255;not null" json:"name"`
	Phone      string          `gorm:"size:40" json:"phone,omitempty"`
	Specialty  string          `gorm:"size:120" json:"specialty,omitempty"`
	HourlyRate decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"hourly_rate"`
	Active     bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
