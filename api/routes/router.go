package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nurseryfinder/nurseryfinder-backend/api/controllers"
	"github.com/nurseryfinder/nurseryfinder-backend/api/middleware"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/auth"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/dashboards"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/notifications"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/reviews"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/auth/session"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/metrics"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/redis"
)

type rateLimitStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	adminSessions session.AccessSessionChecker,
	userSessions session.AccessSessionChecker,
	authService auth.Service,
	registerService auth.RegisterService,
	adminRegisterService auth.AdminRegisterService,
	reviewsService reviews.Service,
	notificationsService notifications.Service,
	nurseriesService nurseries.Service,
	dashboardsService dashboards.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.CORS),
	)

	// a nil *redis.Client must not become a non-nil interface
	var (
		idempotencyStore redis.IdempotencyStore
		rateStore        rateLimitStore
	)
	readiness := map[string]controllers.Pinger{}
	if redisClient != nil {
		idempotencyStore = redisClient
		rateStore = redisClient
		readiness["redis"] = redisClient
	}
	if dbP != nil {
		readiness["db"] = dbP
	}

	loginPolicy := middleware.LoginThrottle(cfg.AuthRateLimit)
	registerPolicy := middleware.RegisterThrottle(cfg.AuthRateLimit)
	reviewPolicy := middleware.ReviewThrottle(cfg.RateLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// guarded pages: 303 to the domain login unless signed in with the right role
	r.With(middleware.PageGuard(middleware.AdminPage(), cfg.JWT, adminSessions, logg)).
		Get("/admin", controllers.PageShell("admin"))
	r.With(middleware.PageGuard(middleware.OwnerPage(), cfg.JWT, userSessions, logg)).
		Get("/dashboard/owner", controllers.PageShell("owner"))
	r.With(middleware.PageGuard(middleware.ParentPage(), cfg.JWT, userSessions, logg)).
		Get("/dashboard/parent", controllers.PageShell("parent"))

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))
		r.With(middleware.Throttle(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(authService, enums.SessionDomainUser, logg))
		r.With(middleware.Throttle(registerPolicy, rateStore, logg)).Post("/register", controllers.AuthRegister(registerService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, enums.SessionDomainUser, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, enums.SessionDomainUser, logg))
	})

	r.Route("/api/v1/nurseries", func(r chi.Router) {
		r.Get("/", controllers.ListNurseries(nurseriesService, logg))
		r.Route("/{"+controllers.NurseryRefParam+"}", func(r chi.Router) {
			r.Get("/", controllers.GetNursery(nurseriesService, logg))
			r.With(
				middleware.IPRateLimit(cfg.RateLimit.ReviewSubmitLimit, cfg.RateLimit.ReviewSubmitWindow, logg),
				middleware.Throttle(reviewPolicy, rateStore, logg),
				middleware.OptionalUserAuth(cfg.JWT, userSessions, logg),
				middleware.Idempotency(idempotencyStore, logg),
			).Post("/reviews", controllers.SubmitReview(reviewsService, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.UserAuth(cfg.JWT, userSessions, logg))
		r.Get("/ping", controllers.PrivatePing())
		r.Route("/dashboard", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.RoleNurseryOwner)).Get("/owner", controllers.OwnerDashboard(dashboardsService, logg))
			r.With(middleware.RequireRole(logg, enums.RoleParent, enums.RoleUser)).Get("/parent", controllers.ParentDashboard(dashboardsService, logg))
		})
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(adminRegisterService, authService, cfg, logg))
		}
		r.With(middleware.Throttle(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(authService, enums.SessionDomainAdmin, logg))
		r.Post("/logout", controllers.AuthLogout(authService, enums.SessionDomainAdmin, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, enums.SessionDomainAdmin, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWT, adminSessions, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Use(middleware.Idempotency(idempotencyStore, logg))
		r.Get("/ping", controllers.AdminPing())
		r.Get("/v1/dashboard", controllers.AdminDashboard(dashboardsService, logg))
		r.Route("/v1/reviews", func(r chi.Router) {
			r.Get("/", controllers.AdminListReviews(reviewsService, logg))
			r.Get("/counts", controllers.AdminReviewCounts(reviewsService, logg))
			r.Get("/{reviewId}", controllers.AdminGetReview(reviewsService, logg))
			r.Post("/{reviewId}/approve", controllers.AdminApproveReview(reviewsService, logg))
			r.Post("/{reviewId}/reject", controllers.AdminRejectReview(reviewsService, logg))
			r.Delete("/{reviewId}", controllers.AdminDeleteReview(reviewsService, logg))
		})
		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
		r.Post("/v1/nurseries/{nurseryId}/approve", controllers.AdminApproveNursery(nurseriesService, logg))
	})

	return r
}
