package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Title         string     `gorm:"size:200;not null" json:"title"`
	Slug          string     `gorm:"size:220;not null;unique" json:"slug"`
	Description   string     `gorm:"type:text" json:"description"`
	CategoryID    *uuid.UUID `json:"category_id"`
	InstructorID  uuid.UUID  `gorm:"not null" json:"instructor_id"`
	ThumbnailURL  *string    `gorm:"size:255" json:"thumbnail_url"`
	Price         float64    `gorm:"type:numeric(10,2);not null" json:"price"`
	Difficulty    string     `gorm:"size:20;not null;default:'beginner'" json:"difficulty"`
	DurationHours int        `gorm:"default:0" json:"duration_hours"`
	IsPublished   bool       `gorm:"default:false" json:"is_published"`
	IsFeatured    bool       `gorm:"default:false" json:"is_featured"`

	Category   *Category `gorm:"foreignkey:CategoryID" json:"category,omitempty"`
	Instructor User      `gorm:"foreignkey:InstructorID" json:"-"`
	Lessons    []Lesson  `gorm:"foreignkey:CourseID" json:"lessons,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (course *Course) BeforeCreate(tx *gorm.DB) error {
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	if course.Slug != "" {
		return nil
	}

	base := Slugify(course.Title)
	slug := base
	for i := 2; ; i++ {
		var existing Course
		err := tx.Where("slug = ?", slug).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			course.Slug = slug
			return nil
		}
		if err != nil {
			return err
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// Slugify lowercases a title and collapses everything that is not a letter or
// digit into single dashes.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
		} else if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
