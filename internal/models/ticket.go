package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketStatus describes the life-cycle state of a queue ticket.
type TicketStatus string

const (
	TicketStatusWaiting TicketStatus = "waiting"
	TicketStatusServed  TicketStatus = "served"
)

// DefaultName is used when a client joins without supplying a display name.
const DefaultName = "Anonymous"

// Ticket represents one person's place in a service queue.
//
// ID is storage identity and stays opaque to clients; TicketNumber is the
// domain-significant value: globally unique and strictly increasing in
// issuance order, enforced by the unique index.
type Ticket struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	TicketNumber int64        `gorm:"uniqueIndex;not null" json:"ticketNumber"`
	Name         string       `json:"name"`
	UrgencyType  string       `json:"type"`
	ServiceType  string       `gorm:"not null" json:"serviceType"`
	Status       TicketStatus `gorm:"index" json:"status"`
	CreatedAt    time.Time    `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// BeforeCreate is a GORM hook that populates the primary key and defaults.
func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TicketStatusWaiting
	}
	if t.Name == "" {
		t.Name = DefaultName
	}
	return nil
}
