package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/pkg/enums"
)

// CourseAccess grants content entitlement, optionally until ExpiresAt.
type CourseAccess struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:course_access_user_course_key"`
	CourseID   uuid.UUID        `gorm:"column:course_id;type:uuid;not null;uniqueIndex:course_access_user_course_key"`
	AccessType enums.AccessType `gorm:"column:access_type;type:access_type;not null"`
	ExpiresAt  *time.Time       `gorm:"column:expires_at"`
	GrantedBy  *uuid.UUID       `gorm:"column:granted_by;type:uuid"`
	GrantedAt  time.Time        `gorm:"column:granted_at;autoCreateTime"`
}

func (CourseAccess) TableName() string { return "course_access" }

func (a *CourseAccess) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// ActiveAt reports whether the grant is still valid at now.
func (a CourseAccess) ActiveAt(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}
