package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusFailed     = "failed"
)

// Order records a purchase intent. It is a financial record: rows are never
// deleted, and completed/cancelled/failed are terminal states.
type Order struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID      uuid.UUID  `gorm:"not null;index" json:"user_id"`
	CourseID    uuid.UUID  `gorm:"not null;index" json:"course_id"`
	PaymentID   *uuid.UUID `gorm:"unique" json:"payment_id"`
	TotalAmount float64    `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	Status      string     `gorm:"size:20;not null;default:'pending'" json:"status"`

	User    User     `gorm:"foreignkey:UserID" json:"-"`
	Course  Course   `gorm:"foreignkey:CourseID" json:"course,omitempty"`
	Payment *Payment `gorm:"foreignkey:PaymentID" json:"payment,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
