package models

import "time"

// Reasons recorded on stock movements.
const (
	MovementInitial  = "initial"
	MovementApproval = "approval"
	MovementReversal = "reversal"
	MovementManual   = "manual"
)

// StockMovement is one append-only entry of the inventory ledger.
type StockMovement struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProductID  uint      `gorm:"not null;index" json:"product_id"`
	Delta      int       `gorm:"not null" json:"delta"`
	StockAfter int       `gorm:"not null" json:"stock_after"`
	Reason     string    `gorm:"size:20;not null;index" json:"reason"`
	DocumentID *uint     `gorm:"index" json:"document_id,omitempty"`
	UserID     *uint     `json:"user_id,omitempty"`
	Note       string    `gorm:"size:255" json:"note,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
