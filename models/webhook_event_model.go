package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent is an audit trail of accepted provider deliveries. Completion
// idempotency is enforced by the order status guard, not by this table.
type WebhookEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	EventID     string    `gorm:"size:255;not null;unique" json:"event_id"`
	EventType   string    `gorm:"size:100;not null" json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
