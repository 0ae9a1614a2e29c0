package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/coursehub/coursehub-backend/api/responses"
	stripewebhook "github.com/coursehub/coursehub-backend/internal/webhooks/stripe"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 20

type eventProcessor interface {
	Process(ctx context.Context, event stripe.Event, payload []byte) stripewebhook.Outcome
}

type signingSecretProvider interface {
	SigningSecret() string
}

// StripeWebhook verifies the delivery signature and hands the event to the
// reconciler. Once verified the processor always gets a 200; failures are kept
// on the logged event row instead of forcing redelivery storms.
func StripeWebhook(svc eventProcessor, client signingSecretProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, client.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook signature"))
			return
		}

		outcome := svc.Process(ctx, event, payload)
		responses.WriteSuccess(w, map[string]any{
			"received": true,
			"event_id": event.ID,
			"outcome":  outcome,
		})
	}
}
