package models

import "time"

// Role names. Permissions per role live in the policy package.
const (
	RoleAdmin     = "admin"
	RoleReception = "reception"
	RoleMechanic  = "mechanic"
	RoleSales     = "sales"
)

// User represents an authenticated back-office user.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Password  string    `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Role      string    `gorm:"size:20;not null;default:'sales'" json:"role"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditLog records who changed what on documents and stock.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     *uint     `gorm:"index" json:"user_id,omitempty"`
	EntityType string    `gorm:"size:40;not null;index" json:"entity_type"`
	EntityID   uint      `gorm:"not null;index" json:"entity_id"`
	Action     string    `gorm:"size:40;not null" json:"action"`
	OldValue   string    `gorm:"size:255" json:"old_value,omitempty"`
	NewValue   string    `gorm:"size:255" json:"new_value,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// All lists every model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &AuditLog{}, &Settings{},
		&Unit{}, &Currency{}, &Product{}, &Service{}, &StockMovement{},
		&Client{}, &Mechanic{}, &Reception{},
		&DocumentSequence{}, &Document{}, &LineItem{},
	}
}
