package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the configured browser origins. A "*" entry disables
// credentialed requests, which browsers refuse to combine with a wildcard.
func CORS(origins []string) func(http.Handler) http.Handler {
	cleaned := make([]string, 0, len(origins))
	wildcard := false
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			wildcard = true
		}
		cleaned = append(cleaned, origin)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   cleaned,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", replayedHeader, "Retry-After"},
		AllowCredentials: !wildcard,
		MaxAge:           600,
	}).Handler
}
