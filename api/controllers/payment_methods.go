package controllers

import (
	"net/http"

	"github.com/coursehub/coursehub-backend/api/responses"
	"github.com/coursehub/coursehub-backend/internal/paymentmethods"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

// MyPaymentMethods lists cards the processor reported as attached to the caller.
func MyPaymentMethods(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := requirePrincipal(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		methods, err := svc.List(r.Context(), p.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, methods)
	}
}
