package middleware

import (
	"net/http"
	"strings"

	"github.com/coursehub/coursehub-backend/api/responses"
	pkgAuth "github.com/coursehub/coursehub-backend/pkg/auth"
	"github.com/coursehub/coursehub-backend/pkg/auth/session"
	"github.com/coursehub/coursehub-backend/pkg/config"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

// Auth validates a bearer token issued by the auth platform and seeds the
// request context with the caller identity.
func Auth(cfg config.AuthConfig, revocations session.RevocationChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotAuthenticated, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeNotAuthenticated, err, "invalid token"))
				return
			}
			userID, _ := claims.UserID()

			if revocations != nil {
				revoked, err := revocations.IsRevoked(r.Context(), claims.TokenID())
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check token revocation"))
					return
				}
				if revoked {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotAuthenticated, "session signed out"))
					return
				}
			}

			principal := Principal{
				UserID:   userID,
				Email:    strings.TrimSpace(claims.Email),
				FullName: strings.TrimSpace(claims.UserMetadata.FullName),
				Phone:    strings.TrimSpace(claims.UserMetadata.Phone),
				TokenID:  claims.TokenID(),
			}
			if claims.ExpiresAt != nil {
				principal.ExpiresAt = claims.ExpiresAt.Time
			}

			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = raw[7:]
	}
	return strings.TrimSpace(raw)
}
