package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/coursehub/coursehub-backend/api/responses"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

type tokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// AuthLogout denies the presented access token until it expires. The auth
// platform keeps its own session; this only stops this API from honoring it.
func AuthLogout(revoker tokenRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := requirePrincipal(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if p.TokenID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "token has no id to revoke"))
			return
		}
		if err := revoker.Revoke(r.Context(), p.TokenID, p.ExpiresAt); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke token"))
			return
		}
		responses.WriteSuccess(w, map[string]bool{"signed_out": true})
	}
}
