package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/api/middleware"
	"github.com/coursehub/coursehub-backend/api/responses"
	"github.com/coursehub/coursehub-backend/api/validators"
	"github.com/coursehub/coursehub-backend/internal/entitlements"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

// MyCourses lists the courses the caller can currently open.
func MyCourses(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := requirePrincipal(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owned, err := svc.OwnedCourses(r.Context(), p.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, owned)
	}
}

func CourseAccess(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := requirePrincipal(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courseID, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		access, err := svc.Check(r.Context(), p.UserID, courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, access)
	}
}

// CourseContent returns lessons with signed playback URLs to entitled callers.
func CourseContent(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := requirePrincipal(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courseID, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		content, err := svc.CourseContent(r.Context(), p.UserID, middleware.RoleFromContext(r.Context()), courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, content)
	}
}

type grantRequest struct {
	UserID    uuid.UUID  `json:"user_id" validate:"required"`
	CourseID  uuid.UUID  `json:"course_id" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func AdminAccessGrant(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body grantRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		grant, err := svc.AdminGrant(r.Context(), middleware.UserIDFromContext(r.Context()), entitlements.AdminGrantInput{
			UserID:    body.UserID,
			CourseID:  body.CourseID,
			ExpiresAt: body.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, grant)
	}
}

func AdminAccessRevoke(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courseID, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.AdminRevoke(r.Context(), middleware.UserIDFromContext(r.Context()), userID, courseID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"user_id": userID, "course_id": courseID, "revoked": true})
	}
}
