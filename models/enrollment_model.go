package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Enrollment grants a user access to a course. At most one row ever exists per
// (user, course) pair; repurchase after a deactivation flips IsActive back on.
type Enrollment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID  `gorm:"not null;uniqueIndex:idx_enrollments_user_course" json:"user_id"`
	CourseID   uuid.UUID  `gorm:"not null;uniqueIndex:idx_enrollments_user_course" json:"course_id"`
	EnrolledAt time.Time  `json:"enrolled_at"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	Progress   int        `gorm:"default:0" json:"progress"`
	CompletedAt *time.Time `json:"completed_at"`

	User   User   `gorm:"foreignkey:UserID" json:"-"`
	Course Course `gorm:"foreignkey:CourseID" json:"course,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now()
	}
	return nil
}
