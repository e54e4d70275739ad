package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

type Payment struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID   uuid.UUID `gorm:"not null;index" json:"user_id"`
	CourseID uuid.UUID `gorm:"not null;index" json:"course_id"`
	Amount   float64   `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Status   string    `gorm:"size:20;not null;default:'pending'" json:"status"`

	// Empty until the provider reports the identifiers; backfilled at most once.
	StripePaymentIntentID string `gorm:"size:255;index" json:"stripe_payment_intent_id"`
	StripeChargeID        string `gorm:"size:255" json:"stripe_charge_id"`

	PaymentMethod string `gorm:"size:50" json:"payment_method"`
	TransactionID string `gorm:"size:255" json:"transaction_id"`

	User   User   `gorm:"foreignkey:UserID" json:"-"`
	Course Course `gorm:"foreignkey:CourseID" json:"-"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
