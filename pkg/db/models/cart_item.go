package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem snapshots the course fields at add time; unique per (user_id, course_id).
type CartItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:cart_items_user_course_key"`
	CourseID       uuid.UUID `gorm:"column:course_id;type:uuid;not null;uniqueIndex:cart_items_user_course_key"`
	Price          int64     `gorm:"column:price;not null"`
	Title          string    `gorm:"column:title;not null"`
	ThumbnailURL   *string   `gorm:"column:thumbnail_url"`
	InstructorName string    `gorm:"column:instructor_name;not null;default:''"`
	AddedAt        time.Time `gorm:"column:added_at;autoCreateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
