package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Certificate struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID         uuid.UUID `gorm:"not null;uniqueIndex:idx_certificates_user_course" json:"user_id"`
	CourseID       uuid.UUID `gorm:"not null;uniqueIndex:idx_certificates_user_course" json:"course_id"`
	CourseTitle    string    `gorm:"size:200;not null" json:"course_title"`
	CompletionDate time.Time `json:"completion_date"`
	CertificateURL string    `gorm:"size:255" json:"certificate_url"`

	User   User   `gorm:"foreignkey:UserID" json:"-"`
	Course Course `gorm:"foreignkey:CourseID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Certificate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
