package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursehub/coursehub-backend/api/controllers"
	webhookcontrollers "github.com/coursehub/coursehub-backend/api/controllers/webhooks"
	"github.com/coursehub/coursehub-backend/api/middleware"
	"github.com/coursehub/coursehub-backend/internal/cart"
	"github.com/coursehub/coursehub-backend/internal/courses"
	"github.com/coursehub/coursehub-backend/internal/entitlements"
	"github.com/coursehub/coursehub-backend/internal/media"
	"github.com/coursehub/coursehub-backend/internal/orders"
	"github.com/coursehub/coursehub-backend/internal/paymentmethods"
	"github.com/coursehub/coursehub-backend/internal/payments"
	"github.com/coursehub/coursehub-backend/internal/profiles"
	stripewebhook "github.com/coursehub/coursehub-backend/internal/webhooks/stripe"
	"github.com/coursehub/coursehub-backend/pkg/auth/session"
	"github.com/coursehub/coursehub-backend/pkg/config"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/metrics"
	"github.com/coursehub/coursehub-backend/pkg/redis"
)

const uploadBodySlackBytes = 1 << 20

// Stores groups the shared clients the router needs directly.
type Stores struct {
	Redis       *redis.Client
	Revocations *session.Manager
	Ready       map[string]controllers.Pinger
	Metrics     http.Handler
	HTTPMetrics *metrics.HTTPMetrics
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Profiles       profiles.Service
	Courses        courses.Service
	Cart           cart.Service
	Orders         orders.Service
	Payments       payments.Service
	Entitlements   entitlements.Service
	PaymentMethods paymentmethods.Service
	Media          media.Service
	Webhooks       *stripewebhook.Service
	StripeSecrets  interface{ SigningSecret() string }
}

func NewRouter(cfg *config.Config, logg *logger.Logger, stores Stores, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, stores.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	metricsHandler := stores.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	var revocations session.RevocationChecker
	if stores.Revocations != nil {
		revocations = stores.Revocations
	}

	var idemStore middleware.IdempotencyStore
	if stores.Redis != nil {
		idemStore = stores.Redis
	}

	paymentPolicy := middleware.NewRateLimitPolicy(
		"payment",
		cfg.RateLimit.PaymentWindow,
		cfg.RateLimit.PaymentIPLimit,
		cfg.RateLimit.PaymentUserLimit,
	)
	paymentLimit := middleware.RateLimit(paymentPolicy, nil, logg)
	if stores.Redis != nil {
		paymentLimit = middleware.RateLimit(paymentPolicy, stores.Redis, logg)
	}

	maxImageBytes := int64(cfg.Storage.MaxImageMB)*1024*1024 + uploadBodySlackBytes

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, stores.Ready))
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(svc.Webhooks, svc.StripeSecrets, logg))
	})

	r.Route("/api/v1/courses", func(r chi.Router) {
		r.Get("/", controllers.CourseList(svc.Courses, logg))
		r.Get("/{courseId}", controllers.CourseDetail(svc.Courses, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, revocations, logg))
		r.Use(middleware.EnsureProfile(svc.Profiles, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Post("/auth/logout", controllers.AuthLogout(stores.Revocations, logg))

			r.Route("/me", func(r chi.Router) {
				r.Get("/profile", controllers.ProfileMe(svc.Profiles, logg))
				r.Put("/profile", controllers.ProfileUpdate(svc.Profiles, logg))
				r.Get("/courses", controllers.MyCourses(svc.Entitlements, logg))
				r.Get("/payment-methods", controllers.MyPaymentMethods(svc.PaymentMethods, logg))
			})

			r.Get("/courses/{courseId}/access", controllers.CourseAccess(svc.Entitlements, logg))
			r.Get("/courses/{courseId}/content", controllers.CourseContent(svc.Entitlements, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(svc.Cart, logg))
				r.Post("/", controllers.CartAdd(svc.Cart, logg))
				r.Delete("/", controllers.CartClear(svc.Cart, logg))
				r.Delete("/{courseId}", controllers.CartRemove(svc.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(svc.Orders, logg))
				r.Post("/", controllers.OrderCreate(svc.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(svc.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.OrderCancel(svc.Orders, logg))
				r.With(paymentLimit).Post("/{orderId}/pay", controllers.OrderPay(svc.Payments, logg))
			})
			r.With(paymentLimit).Post("/checkout", controllers.Checkout(svc.Payments, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Route("/courses", func(r chi.Router) {
				r.Get("/", controllers.AdminCourseList(svc.Courses, logg))
				r.Post("/", controllers.AdminCourseCreate(svc.Courses, logg))
				r.Get("/{courseId}", controllers.AdminCourseDetail(svc.Courses, logg))
				r.Put("/{courseId}", controllers.AdminCourseUpdate(svc.Courses, logg))
				r.Delete("/{courseId}", controllers.AdminCourseDelete(svc.Courses, logg))
				r.Route("/{courseId}/videos", func(r chi.Router) {
					r.Get("/", controllers.AdminVideoList(svc.Courses, logg))
					r.Post("/", controllers.AdminVideoCreate(svc.Courses, logg))
					r.Put("/{videoId}", controllers.AdminVideoUpdate(svc.Courses, logg))
					r.Delete("/{videoId}", controllers.AdminVideoDelete(svc.Courses, logg))
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrderList(svc.Orders, logg))
				r.Get("/{orderId}", controllers.AdminOrderDetail(svc.Orders, logg))
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", controllers.AdminUserList(svc.Profiles, logg))
				r.Put("/{userId}/role", controllers.AdminUserSetRole(svc.Profiles, logg))
			})

			r.Route("/access", func(r chi.Router) {
				r.Post("/", controllers.AdminAccessGrant(svc.Entitlements, logg))
				r.Delete("/{userId}/{courseId}", controllers.AdminAccessRevoke(svc.Entitlements, logg))
			})

			r.Get("/webhook-events", controllers.AdminWebhookEvents(svc.Webhooks, logg))
			r.Post("/uploads", controllers.AdminUpload(svc.Media, maxImageBytes, logg))
		})
	})

	return r
}
