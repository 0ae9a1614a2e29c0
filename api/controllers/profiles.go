package controllers

import (
	"net/http"

	"github.com/coursehub/coursehub-backend/api/middleware"
	"github.com/coursehub/coursehub-backend/api/responses"
	"github.com/coursehub/coursehub-backend/api/validators"
	"github.com/coursehub/coursehub-backend/internal/profiles"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

func ProfileMe(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := requirePrincipal(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Get(r.Context(), p.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type updateProfileRequest struct {
	FullName    *string `json:"full_name" validate:"omitempty,max=200"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	DateOfBirth *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

func ProfileUpdate(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := requirePrincipal(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Update(r.Context(), p.UserID, profiles.UpdateInput{
			FullName:    trimPtr(body.FullName),
			Phone:       trimPtr(body.Phone),
			DateOfBirth: trimPtr(body.DateOfBirth),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func AdminUserList(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := profiles.ListFilters{Search: validators.SanitizeString(r.URL.Query().Get("q"), 128)}
		if raw := r.URL.Query().Get("role"); raw != "" {
			role, err := enums.ParseProfileRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
				return
			}
			filters.Role = &role
		}
		list, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin superadmin"`
}

// AdminUserSetRole changes a user's role; the service limits who may promote.
func AdminUserSetRole(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID, err := uuidParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body setRoleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.SetRole(r.Context(), middleware.UserIDFromContext(r.Context()), targetID, enums.ProfileRole(body.Role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
