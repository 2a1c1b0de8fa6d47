package models

import "time"

// ReceptionStatus tracks a watercraft from intake to delivery.
type ReceptionStatus string

const (
	ReceptionReceived  ReceptionStatus = "received"
	ReceptionDiagnosis ReceptionStatus = "diagnosing"
	ReceptionInRepair  ReceptionStatus = "in_repair"
	ReceptionReady     ReceptionStatus = "ready"
	ReceptionDelivered ReceptionStatus = "delivered"
)

var receptionOrder = map[ReceptionStatus]int{
	ReceptionReceived:  0,
	ReceptionDiagnosis: 1,
	ReceptionInRepair:  2,
	ReceptionReady:     3,
	ReceptionDelivered: 4,
}

func (s ReceptionStatus) Valid() bool {
	_, ok := receptionOrder[s]
	return ok
}

// CanAdvanceTo allows moving forward only. Delivery requires the craft to be ready.
func (s ReceptionStatus) CanAdvanceTo(next ReceptionStatus) bool {
	from, ok1 := receptionOrder[s]
	to, ok2 := receptionOrder[next]
	if !ok1 || !ok2 || to <= from {
		return false
	}
	if next == ReceptionDelivered {
		return s == ReceptionReady
	}
	return true
}

// Open reports whether the craft is still in the shop.
func (s ReceptionStatus) Open() bool {
	return s != ReceptionDelivered
}

// Reception is the intake record of a watercraft left at the shop.
type Reception struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Ticket        string          `gorm:"size:20;not null;uniqueIndex" json:"ticket"`
	ClientID      uint            `gorm:"not null;index" json:"client_id"`
	Client        *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	MechanicID    *uint           `gorm:"index" json:"mechanic_id,omitempty"`
	Mechanic      *Mechanic       `gorm:"foreignKey:MechanicID" json:"mechanic,omitempty"`
	CraftType     string          `gorm:"size:40;not null" json:"craft_type"` // jet ski, outboard, boat...
	Brand         string          `gorm:"size:120" json:"brand,omitempty"`
	Model         string          `gorm:"size:120" json:"model,omitempty"`
	HullNumber    string          `gorm:"size:60;index" json:"hull_number,omitempty"`
	EngineHours   int             `gorm:"not null;default:0" json:"engine_hours"`
	ReportedIssue string          `gorm:"type:text;not null" json:"reported_issue"`
	Diagnosis     string          `gorm:"type:text" json:"diagnosis,omitempty"`
	Status        ReceptionStatus `gorm:"size:16;not null;index" json:"status"`
	ReceivedAt    time.Time       `gorm:"not null" json:"received_at"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
