package middleware

import (
	"net/http"
	"slices"

	"github.com/coursehub/coursehub-backend/api/responses"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

// RequireRole admits requests whose profile role is one of allowed. It runs
// after EnsureProfile, which stores the role on the context.
func RequireRole(logg *logger.Logger, allowed ...enums.ProfileRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if !slices.Contains(allowed, role) {
				err := pkgerrors.Newf(pkgerrors.CodeUnauthorized, "role %q may not access this resource", role)
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates the back office.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireRole(logg, enums.ProfileRoleAdmin, enums.ProfileRoleSuperadmin)
}
