package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name string    `gorm:"size:100;not null" json:"name"`
	Slug string    `gorm:"size:120;not null;unique" json:"slug"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (cat *Category) BeforeCreate(tx *gorm.DB) error {
	if cat.ID == uuid.Nil {
		cat.ID = uuid.New()
	}
	if cat.Slug == "" {
		cat.Slug = Slugify(cat.Name)
	}
	return nil
}
