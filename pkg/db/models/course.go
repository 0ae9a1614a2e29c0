package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course is a sellable catalog entry. Price is stored in minor currency units.
type Course struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Title          string    `gorm:"column:title;not null"`
	Description    string    `gorm:"column:description;not null;default:''"`
	Price          int64     `gorm:"column:price;not null"`
	ThumbnailURL   *string   `gorm:"column:thumbnail_url"`
	VideoURL       *string   `gorm:"column:video_url"`
	InstructorName string    `gorm:"column:instructor_name;not null;default:''"`
	Category       string    `gorm:"column:category;not null;default:''"`
	IsActive       bool      `gorm:"column:is_active;not null"`
	IsPublished    bool      `gorm:"column:is_published;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Videos []CourseVideo `gorm:"foreignKey:CourseID"`
}

func (c *Course) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// IsPurchasable reports whether the course may be added to a cart.
func (c Course) IsPurchasable() bool {
	return c.IsActive && c.IsPublished
}

// CourseVideo is a lesson stored in object storage under VideoKey.
type CourseVideo struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CourseID        uuid.UUID `gorm:"column:course_id;type:uuid;not null;index"`
	Title           string    `gorm:"column:title;not null"`
	Description     string    `gorm:"column:description;not null;default:''"`
	VideoKey        string    `gorm:"column:video_key;not null"`
	Position        int       `gorm:"column:position;not null;default:0"`
	DurationSeconds int       `gorm:"column:duration_seconds;not null;default:0"`
	IsPreview       bool      `gorm:"column:is_preview;not null;default:false"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *CourseVideo) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
