package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/api/responses"
	"github.com/coursehub/coursehub-backend/internal/profiles"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

type profileEnsurer interface {
	Ensure(ctx context.Context, identity profiles.Identity) error
	Role(ctx context.Context, userID uuid.UUID) (enums.ProfileRole, error)
}

// EnsureProfile creates the caller's profile on first sight and loads the
// role used by the admin gate.
func EnsureProfile(svc profileEnsurer, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := PrincipalFromContext(ctx)
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotAuthenticated, "user context missing"))
				return
			}
			if err := svc.Ensure(ctx, profiles.Identity{
				UserID:   principal.UserID,
				Email:    principal.Email,
				FullName: principal.FullName,
				Phone:    principal.Phone,
			}); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			role, err := svc.Role(ctx, principal.UserID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			ctx = WithRole(ctx, role)
			if logg != nil {
				ctx = logg.WithActorRole(ctx, string(role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
