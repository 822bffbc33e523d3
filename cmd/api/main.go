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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nurseryfinder/nurseryfinder-backend/api/routes"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/auth"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/dashboards"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/notifications"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/reviews"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/users"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/auth/session"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/instance"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/metrics"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/migrate"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

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

	adminSessions, err := session.NewManager(redisClient, cfg.JWT, enums.SessionDomainAdmin)
	if err != nil {
		logg.Error(context.Background(), "failed to create admin session manager", err)
		os.Exit(1)
	}
	userSessions, err := session.NewManager(redisClient, cfg.JWT, enums.SessionDomainUser)
	if err != nil {
		logg.Error(context.Background(), "failed to create user session manager", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(reg)
	moderationMetrics := metrics.NewModerationMetrics(reg)

	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	nurseriesRepo := nurseries.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	nurseriesService, err := nurseries.NewService(nurseries.ServiceParams{
		Repo:   nurseriesRepo,
		DB:     dbClient,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create nurseries service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(
		notifications.NewRepository(conn),
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
		Outbox:        outboxService,
		DB:            dbClient,
		Metrics:       moderationMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reviews service", err)
		os.Exit(1)
	}

	dashboardsService, err := dashboards.NewService(dashboards.ServiceParams{
		Reviews:       reviewsService,
		Nurseries:     nurseriesRepo,
		Notifications: notifications.NewRepository(conn),
		Cache:         redisClient,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboards service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:     usersRepo,
		Nurseries:    nurseriesRepo,
		AdminSession: adminSessions,
		UserSession:  userSessions,
		Events:       session.NewEventBus(redisClient),
		JWTConfig:    cfg.JWT,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Nurseries:      nurseriesService,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin register service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID("local"),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			reg,
			httpMetrics,
			adminSessions,
			userSessions,
			authService,
			registerService,
			adminRegisterService,
			reviewsService,
			notificationsService,
			nurseriesService,
			dashboardsService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
