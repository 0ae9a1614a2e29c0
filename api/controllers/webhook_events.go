package controllers

import (
	"context"
	"net/http"

	"github.com/coursehub/coursehub-backend/api/responses"
	"github.com/coursehub/coursehub-backend/api/validators"
	stripewebhook "github.com/coursehub/coursehub-backend/internal/webhooks/stripe"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
)

type webhookEventLister interface {
	List(ctx context.Context, filters stripewebhook.ListFilters, params pagination.Params) (*stripewebhook.EventList, error)
}

// AdminWebhookEvents pages through logged processor deliveries.
func AdminWebhookEvents(svc webhookEventLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := stripewebhook.ListFilters{EventType: validators.SanitizeString(r.URL.Query().Get("type"), 128)}
		if filters.Processed, err = validators.ParseQueryBool(r, "processed"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		failed, err := validators.ParseQueryBool(r, "failed")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.Failed = failed != nil && *failed
		list, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
