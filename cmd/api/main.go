package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursehub/coursehub-backend/api/controllers"
	"github.com/coursehub/coursehub-backend/api/routes"
	"github.com/coursehub/coursehub-backend/internal/cart"
	"github.com/coursehub/coursehub-backend/internal/courses"
	"github.com/coursehub/coursehub-backend/internal/entitlements"
	"github.com/coursehub/coursehub-backend/internal/media"
	"github.com/coursehub/coursehub-backend/internal/orders"
	"github.com/coursehub/coursehub-backend/internal/paymentmethods"
	"github.com/coursehub/coursehub-backend/internal/payments"
	"github.com/coursehub/coursehub-backend/internal/profiles"
	"github.com/coursehub/coursehub-backend/internal/stripecustomers"
	stripewebhook "github.com/coursehub/coursehub-backend/internal/webhooks/stripe"
	"github.com/coursehub/coursehub-backend/pkg/auth/session"
	"github.com/coursehub/coursehub-backend/pkg/config"
	"github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/idempotency"
	"github.com/coursehub/coursehub-backend/pkg/instance"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/metrics"
	"github.com/coursehub/coursehub-backend/pkg/migrate"
	"github.com/coursehub/coursehub-backend/pkg/outbox"
	"github.com/coursehub/coursehub-backend/pkg/redis"
	"github.com/coursehub/coursehub-backend/pkg/storage/s3"
	"github.com/coursehub/coursehub-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	revocations, err := session.NewManager(redisClient, cfg.Auth)
	if err != nil {
		return err
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	gateway, err := stripe.NewGateway(stripeClient)
	if err != nil {
		return err
	}

	storage, err := s3.NewClient(ctx, cfg.Storage, logg)
	if err != nil {
		return err
	}

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	profileSvc, err := profiles.NewService(
		profiles.NewRepository(dbClient.DB()),
		profiles.NewRedisCache(redisClient, cfg.ProfileCache.TTL),
		logg,
	)
	if err != nil {
		return err
	}

	courseRepo := courses.NewRepository(dbClient.DB())
	courseSvc, err := courses.NewService(courseRepo, storage, logg)
	if err != nil {
		return err
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	entitlementRepo := entitlements.NewRepository(dbClient.DB())
	entitlementSvc, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:    entitlementRepo,
		Courses: courseRepo,
		Cart:    cartRepo,
		Signer:  storage,
		Tx:      dbClient,
		Outbox:  outboxSvc,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	cartSvc, err := cart.NewService(cartRepo, courseRepo, entitlementSvc, stripeClient.Currency())
	if err != nil {
		return err
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		Cart:     cartSvc,
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Logger:   logg,
		Currency: stripeClient.Currency(),
	})
	if err != nil {
		return err
	}

	customerRepo := stripecustomers.NewRepository(dbClient.DB())
	customerSvc, err := stripecustomers.NewService(customerRepo, gateway, logg)
	if err != nil {
		return err
	}

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Orders:        orderRepo,
		OrderService:  orderSvc,
		Customers:     customerSvc,
		Gateway:       gateway,
		Entitlements:  entitlementSvc,
		Tx:            dbClient,
		Outbox:        outboxSvc,
		Metrics:       paymentMetrics,
		Logger:        logg,
		ReturnURL:     cfg.App.URL(cfg.Stripe.ReturnPath),
		DefaultMethod: cfg.Stripe.ConfirmPaymentMethod,
		TestMode:      stripeClient.IsTestMode(),
	})
	if err != nil {
		return err
	}

	methodSvc, err := paymentmethods.NewService(paymentmethods.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	webhookGuard, err := idempotency.NewManager(redisClient, cfg.Stripe.WebhookIdempotencyTTL)
	if err != nil {
		return err
	}
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Repo:           stripewebhook.NewRepository(dbClient.DB()),
		Guard:          webhookGuard,
		Payments:       paymentSvc,
		Entitlements:   entitlementRepo,
		Customers:      customerSvc,
		PaymentMethods: methodSvc,
		Tx:             dbClient,
		Outbox:         outboxSvc,
		Metrics:        paymentMetrics,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	mediaSvc, err := media.NewService(storage, media.Options{
		ImageDir:        cfg.Storage.ImageDir,
		ImagePublicPath: cfg.Storage.ImagePublicPath,
		MaxImageMB:      cfg.Storage.MaxImageMB,
		MaxVideoMB:      cfg.Storage.MaxVideoMB,
	}, logg)
	if err != nil {
		return err
	}

	handler := routes.NewRouter(cfg, logg,
		routes.Stores{
			Redis:       redisClient,
			Revocations: revocations,
			Ready: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
				"storage":  storage,
			},
			Metrics:     promhttp.Handler(),
			HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		},
		routes.Services{
			Profiles:       profileSvc,
			Courses:        courseSvc,
			Cart:           cartSvc,
			Orders:         orderSvc,
			Payments:       paymentSvc,
			Entitlements:   entitlementSvc,
			PaymentMethods: methodSvc,
			Media:          mediaSvc,
			Webhooks:       webhookSvc,
			StripeSecrets:  stripeClient,
		},
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.ID(),
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
