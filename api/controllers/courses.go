package controllers

import (
	"net/http"
	"strings"

	"github.com/coursehub/coursehub-backend/api/middleware"
	"github.com/coursehub/coursehub-backend/api/responses"
	"github.com/coursehub/coursehub-backend/api/validators"
	"github.com/coursehub/coursehub-backend/internal/courses"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

// CourseList returns published courses, optionally filtered by category and title search.
func CourseList(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := courses.ListFilters{
			Category: validators.SanitizeString(r.URL.Query().Get("category"), 64),
			Search:   validators.SanitizeString(r.URL.Query().Get("q"), 128),
		}
		list, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type courseDetailResponse struct {
	*courses.CourseDTO
	Previews []courses.VideoDTO `json:"previews"`
}

// CourseDetail returns one published course with its preview lessons.
func CourseDetail(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		course, err := svc.Get(r.Context(), id, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		previews, err := svc.PreviewVideos(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, courseDetailResponse{CourseDTO: course, Previews: previews})
	}
}

type courseRequest struct {
	Title          *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description    *string `json:"description" validate:"omitempty,max=10000"`
	Price          *string `json:"price" validate:"omitempty,max=32,price"`
	PriceMinor     *int64  `json:"price_minor" validate:"omitempty,min=0"`
	ThumbnailURL   *string `json:"thumbnail_url" validate:"omitempty,max=2048"`
	VideoURL       *string `json:"video_url" validate:"omitempty,max=2048"`
	InstructorName *string `json:"instructor_name" validate:"omitempty,max=200"`
	Category       *string `json:"category" validate:"omitempty,max=64"`
	IsActive       *bool   `json:"is_active"`
	IsPublished    *bool   `json:"is_published"`
}

func (c courseRequest) toInput() courses.CourseInput {
	return courses.CourseInput{
		Title:          trimPtr(c.Title),
		Description:    c.Description,
		Price:          trimPtr(c.Price),
		PriceMinor:     c.PriceMinor,
		ThumbnailURL:   trimPtr(c.ThumbnailURL),
		VideoURL:       trimPtr(c.VideoURL),
		InstructorName: trimPtr(c.InstructorName),
		Category:       trimPtr(c.Category),
		IsActive:       c.IsActive,
		IsPublished:    c.IsPublished,
	}
}

// AdminCourseList includes inactive and unpublished courses.
func AdminCourseList(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := courses.ListFilters{
			Category:      validators.SanitizeString(r.URL.Query().Get("category"), 64),
			Search:        validators.SanitizeString(r.URL.Query().Get("q"), 128),
			IncludeHidden: true,
		}
		list, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminCourseDetail(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		course, err := svc.Get(r.Context(), id, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, course)
	}
}

func AdminCourseCreate(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body courseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		course, err := svc.Create(r.Context(), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(r.Context(), map[string]any{
				"course_id": course.ID.String(),
				"actor_id":  middleware.UserIDFromContext(r.Context()).String(),
			}), "course.created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, course)
	}
}

func AdminCourseUpdate(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body courseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		course, err := svc.Update(r.Context(), id, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, course)
	}
}

// AdminCourseDelete soft-deletes by deactivating the course.
func AdminCourseDelete(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "is_active": false})
	}
}

type videoRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string `json:"description" validate:"omitempty,max=5000"`
	VideoKey        *string `json:"video_key" validate:"omitempty,max=1024,objectkey"`
	Position        *int    `json:"position" validate:"omitempty,min=0"`
	DurationSeconds *int    `json:"duration_seconds" validate:"omitempty,min=0"`
	IsPreview       *bool   `json:"is_preview"`
}

func (v videoRequest) toInput() courses.VideoInput {
	return courses.VideoInput{
		Title:           trimPtr(v.Title),
		Description:     v.Description,
		VideoKey:        trimPtr(v.VideoKey),
		Position:        v.Position,
		DurationSeconds: v.DurationSeconds,
		IsPreview:       v.IsPreview,
	}
}

func AdminVideoList(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		videos, err := svc.ListVideos(r.Context(), courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, videos)
	}
}

func AdminVideoCreate(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body videoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		video, err := svc.AddVideo(r.Context(), courseID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, video)
	}
}

func AdminVideoUpdate(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		videoID, err := uuidParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body videoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		video, err := svc.UpdateVideo(r.Context(), courseID, videoID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, video)
	}
}

func AdminVideoDelete(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		videoID, err := uuidParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteVideo(r.Context(), courseID, videoID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": videoID, "deleted": true})
	}
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
