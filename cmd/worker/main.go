package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/dashboards"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/notifications"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/reviews"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/instance"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/metrics"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/migrate"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pubsub"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	conn := dbClient.DB()
	nurseriesRepo := nurseries.NewRepository(conn)
	notificationsRepo := notifications.NewRepository(conn)
	notificationsService, err := notifications.NewService(
		notificationsRepo,
		notifications.WithDashboardCache(dashboards.NewAdminCache(redisClient)),
		notifications.WithLogger(logg),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	reviewsService, err := reviews.NewService(reviews.ServiceParams{
		Repo:          reviews.NewRepository(conn),
		Nurseries:     nurseriesRepo,
		Notifications: notificationsService,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), logg),
		DB:            dbClient,
		Metrics:       metrics.NewModerationMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reviews service", err)
		os.Exit(1)
	}
	dashboardsService, err := dashboards.NewService(dashboards.ServiceParams{
		Reviews:       reviewsService,
		Nurseries:     nurseriesRepo,
		Notifications: notificationsRepo,
		Cache:         redisClient,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboards service", err)
		os.Exit(1)
	}
	consumer, err := dashboards.NewConsumer(dashboardsService, pubsubClient.ReviewEventsSubscription(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboard consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:            cfg,
		Logger:            logg,
		DB:                dbClient,
		Redis:             redisClient,
		PubSub:            pubsubClient,
		DashboardConsumer: consumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.ID("worker-0"),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
