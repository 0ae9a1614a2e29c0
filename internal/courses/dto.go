package courses

import (
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/money"
)

// CourseDTO exposes catalog data in API responses.
type CourseDTO struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Price          int64     `json:"price"`
	PriceDisplay   string    `json:"price_display"`
	ThumbnailURL   *string   `json:"thumbnail_url,omitempty"`
	VideoURL       *string   `json:"video_url,omitempty"`
	InstructorName string    `json:"instructor_name"`
	Category       string    `json:"category"`
	IsActive       bool      `json:"is_active"`
	IsPublished    bool      `json:"is_published"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CourseList is one page of catalog results.
type CourseList struct {
	Courses    []CourseDTO `json:"courses"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// VideoDTO describes a lesson. PlaybackURL is set only on gated content responses.
type VideoDTO struct {
	ID              uuid.UUID `json:"id"`
	CourseID        uuid.UUID `json:"course_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	VideoKey        string    `json:"video_key,omitempty"`
	Position        int       `json:"position"`
	DurationSeconds int       `json:"duration_seconds"`
	IsPreview       bool      `json:"is_preview"`
	PlaybackURL     string    `json:"playback_url,omitempty"`
}

// CourseInput carries admin create/update fields. Nil pointers are left unchanged on update.
// Price accepts major units ("19.99"); PriceMinor accepts minor units directly.
type CourseInput struct {
	Title          *string
	Description    *string
	Price          *string
	PriceMinor     *int64
	ThumbnailURL   *string
	VideoURL       *string
	InstructorName *string
	Category       *string
	IsActive       *bool
	IsPublished    *bool
}

// VideoInput carries admin video fields. Nil pointers are left unchanged on update.
type VideoInput struct {
	Title           *string
	Description     *string
	VideoKey        *string
	Position        *int
	DurationSeconds *int
	IsPreview       *bool
}

// FromModel maps the persisted course into a DTO.
func FromModel(m *models.Course) *CourseDTO {
	if m == nil {
		return nil
	}
	return &CourseDTO{
		ID:             m.ID,
		Title:          m.Title,
		Description:    m.Description,
		Price:          m.Price,
		PriceDisplay:   money.FormatMajor(m.Price),
		ThumbnailURL:   m.ThumbnailURL,
		VideoURL:       m.VideoURL,
		InstructorName: m.InstructorName,
		Category:       m.Category,
		IsActive:       m.IsActive,
		IsPublished:    m.IsPublished,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// VideoFromModel maps a video row. The object key is only exposed to admins.
func VideoFromModel(m models.CourseVideo, includeKey bool) VideoDTO {
	dto := VideoDTO{
		ID:              m.ID,
		CourseID:        m.CourseID,
		Title:           m.Title,
		Description:     m.Description,
		Position:        m.Position,
		DurationSeconds: m.DurationSeconds,
		IsPreview:       m.IsPreview,
	}
	if includeKey {
		dto.VideoKey = m.VideoKey
	}
	return dto
}
