package middleware

import (
	"fmt"
	"net/http"

	"github.com/nurseryfinder/nurseryfinder-backend/api/responses"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

// Recoverer turns a handler panic into the 500 error envelope; the logger
// attaches the stack. http.ErrAbortHandler is re-raised so net/http drops the
// connection, and nothing is written once the response has started.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				cause, ok := v.(error)
				if !ok {
					cause = fmt.Errorf("%v", v)
				}
				err := pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "handler panic")

				ctx := r.Context()
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"method":           r.Method,
						"route":            routePattern(r),
						"panic":            cause.Error(),
						"response_started": rec.status != 0,
					})
					logg.Error(logCtx, "http.panic_recovered", err)
				}
				if rec.status != 0 {
					return
				}
				responses.WriteError(ctx, nil, w, err)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
