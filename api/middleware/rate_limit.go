package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/nurseryfinder/nurseryfinder-backend/api/responses"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

// IPRateLimit caps requests per client IP in a sliding window. It is used on
// anonymous write paths such as review submission.
func IPRateLimit(limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return clientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if logg != nil {
				logCtx := logg.WithFields(r.Context(), map[string]any{
					"ip":             clientIP(r),
					"limit":          limit,
					"window_seconds": int(window.Seconds()),
				})
				logg.Warn(logCtx, "ip.rate_limit.blocked")
			}
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		}),
	)
}
