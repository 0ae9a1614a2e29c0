package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/pkg/enums"
)

// Profile mirrors an auth platform user. ID equals the auth subject.
type Profile struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Email       string            `gorm:"column:email;not null"`
	FullName    string            `gorm:"column:full_name;not null;default:''"`
	Phone       *string           `gorm:"column:phone"`
	DateOfBirth *time.Time        `gorm:"column:date_of_birth;type:date"`
	Role        enums.ProfileRole `gorm:"column:role;type:profile_role;not null;default:'user'"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
