package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CourseID uuid.UUID `gorm:"not null;uniqueIndex:idx_reviews_course_user" json:"course_id"`
	UserID   uuid.UUID `gorm:"not null;uniqueIndex:idx_reviews_course_user" json:"user_id"`
	Rating   int       `gorm:"not null" json:"rating"`
	Comment  string    `gorm:"type:text" json:"comment"`

	Course Course `gorm:"foreignkey:CourseID" json:"-"`
	User   User   `gorm:"foreignkey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
