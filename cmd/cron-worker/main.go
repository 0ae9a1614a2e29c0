package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coursehub/coursehub-backend/internal/cart"
	"github.com/coursehub/coursehub-backend/internal/courses"
	"github.com/coursehub/coursehub-backend/internal/cron"
	"github.com/coursehub/coursehub-backend/internal/entitlements"
	"github.com/coursehub/coursehub-backend/internal/orders"
	stripewebhook "github.com/coursehub/coursehub-backend/internal/webhooks/stripe"
	"github.com/coursehub/coursehub-backend/pkg/config"
	"github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/metrics"
	"github.com/coursehub/coursehub-backend/pkg/migrate"
	"github.com/coursehub/coursehub-backend/pkg/outbox"
	"github.com/coursehub/coursehub-backend/pkg/redis"
	"github.com/coursehub/coursehub-backend/pkg/storage/s3"
)

const lockNameFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	schedule, err := buildSchedule(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Schedule: schedule,
		Lock:     lock,
		Metrics:  metricsCollector,
		Tick:     cfg.Cron.Tick,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildSchedule wires the order service the expiry job needs plus the two
// retention jobs.
func buildSchedule(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Schedule, error) {
	ctx := context.Background()
	storage, err := s3.NewClient(ctx, cfg.Storage, logg)
	if err != nil {
		return nil, err
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)
	courseRepo := courses.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())

	entitlementSvc, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:    entitlements.NewRepository(dbClient.DB()),
		Courses: courseRepo,
		Cart:    cartRepo,
		Signer:  storage,
		Tx:      dbClient,
		Outbox:  outboxSvc,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}
	cartSvc, err := cart.NewService(cartRepo, courseRepo, entitlementSvc, cfg.Stripe.Currency)
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		Cart:     cartSvc,
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Logger:   logg,
		Currency: cfg.Stripe.Currency,
	})
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger: logg,
		Orders: orderSvc,
		TTL:    cfg.Cron.PendingOrderTTL,
	})
	if err != nil {
		return nil, err
	}
	webhookRetention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:      "webhook-log-retention",
		Logger:    logg,
		Prune:     stripewebhook.NewRepository(dbClient.DB()).DeleteProcessedBefore,
		Retention: cfg.Cron.WebhookLogRetention,
	})
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:      "outbox-retention",
		Logger:    logg,
		Prune:     outboxRepo.DeletePublishedBefore,
		Retention: cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewSchedule().
		Every(cfg.Cron.ExpiryEvery, expiry).
		Every(cfg.Cron.RetentionEvery, webhookRetention).
		Every(cfg.Cron.RetentionEvery, outboxRetention), nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}
