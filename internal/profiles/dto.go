package profiles

import (
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
)

const dateLayout = "2006-01-02"

// Identity is what the access token tells us about the caller.
type Identity struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	Phone    string
}

// ProfileDTO exposes profile data in API responses.
type ProfileDTO struct {
	ID          uuid.UUID         `json:"id"`
	Email       string            `json:"email"`
	FullName    string            `json:"full_name"`
	Phone       *string           `json:"phone,omitempty"`
	DateOfBirth *string           `json:"date_of_birth,omitempty"`
	Role        enums.ProfileRole `json:"role"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ProfileList is one page of the admin user listing.
type ProfileList struct {
	Users      []ProfileDTO `json:"users"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// UpdateInput holds self-service profile changes. Nil fields are left unchanged;
// an empty Phone or DateOfBirth clears the value.
type UpdateInput struct {
	FullName    *string
	Phone       *string
	DateOfBirth *string
}

// FromModel maps the persisted profile into a DTO.
func FromModel(m *models.Profile) *ProfileDTO {
	if m == nil {
		return nil
	}
	dto := &ProfileDTO{
		ID:        m.ID,
		Email:     m.Email,
		FullName:  m.FullName,
		Phone:     m.Phone,
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.DateOfBirth != nil {
		dob := m.DateOfBirth.Format(dateLayout)
		dto.DateOfBirth = &dob
	}
	return dto
}
