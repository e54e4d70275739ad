package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Lesson struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CourseID        uuid.UUID `gorm:"not null;index" json:"course_id"`
	Title           string    `gorm:"size:200;not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	VideoURL        *string   `gorm:"size:255" json:"video_url"`
	DurationMinutes int       `gorm:"default:0" json:"duration_minutes"`
	SortOrder       int       `gorm:"default:0" json:"sort_order"`
	IsPublished     bool      `gorm:"default:true" json:"is_published"`
	IsPreview       bool      `gorm:"default:false" json:"is_preview"`

	Course Course `gorm:"foreignkey:CourseID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
