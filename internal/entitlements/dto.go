package entitlements

import (
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/internal/courses"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
)

// GrantInput describes a settled order whose courses become owned.
type GrantInput struct {
	UserID          uuid.UUID
	OrderID         *uuid.UUID
	CourseIDs       []uuid.UUID
	Currency        string
	PaymentIntentID string
	ChargeID        string
}

// AccessDTO answers "can this user watch this course".
type AccessDTO struct {
	CourseID   uuid.UUID         `json:"course_id"`
	HasAccess  bool              `json:"has_access"`
	AccessType *enums.AccessType `json:"access_type,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
}

// OwnedCourseDTO pairs a catalog entry with the grant that unlocks it.
type OwnedCourseDTO struct {
	Course     courses.CourseDTO `json:"course"`
	AccessType enums.AccessType  `json:"access_type"`
	GrantedAt  time.Time         `json:"granted_at"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
}

// ContentDTO is the gated lesson list with short-lived playback URLs.
type ContentDTO struct {
	Course    courses.CourseDTO  `json:"course"`
	Videos    []courses.VideoDTO `json:"videos"`
	ExpiresAt time.Time          `json:"urls_expire_at"`
}

// AdminGrantInput is an admin-issued grant with optional expiry.
type AdminGrantInput struct {
	UserID    uuid.UUID
	CourseID  uuid.UUID
	ExpiresAt *time.Time
}

// GrantDTO is the stored grant returned to admins.
type GrantDTO struct {
	ID         uuid.UUID        `json:"id"`
	UserID     uuid.UUID        `json:"user_id"`
	CourseID   uuid.UUID        `json:"course_id"`
	AccessType enums.AccessType `json:"access_type"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
	GrantedBy  *uuid.UUID       `json:"granted_by,omitempty"`
	GrantedAt  time.Time        `json:"granted_at"`
}

func grantFromModel(m *models.CourseAccess) *GrantDTO {
	return &GrantDTO{
		ID:         m.ID,
		UserID:     m.UserID,
		CourseID:   m.CourseID,
		AccessType: m.AccessType,
		ExpiresAt:  m.ExpiresAt,
		GrantedBy:  m.GrantedBy,
		GrantedAt:  m.GrantedAt,
	}
}
