package controllers

import (
	"net/http"

	"github.com/nurseryfinder/nurseryfinder-backend/api/middleware"
	"github.com/nurseryfinder/nurseryfinder-backend/api/responses"
	"github.com/nurseryfinder/nurseryfinder-backend/api/validators"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/dashboards"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

func AdminDashboard(svc dashboards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboards service unavailable"))
			return
		}
		view, err := svc.Admin(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// OwnerDashboard lists the signed-in owner's nurseries and their approved reviews.
func OwnerDashboard(svc dashboards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboards service unavailable"))
			return
		}
		ownerID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		view, err := svc.Owner(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ParentDashboard lists the reviews the signed-in parent wrote.
func ParentDashboard(svc dashboards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboards service unavailable"))
			return
		}
		authorID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Parent(r.Context(), authorID, pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// PageShell answers a guarded page load. Page markup is served by the
// frontend; the shell tells it who is signed in and which area was opened.
func PageShell(area string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"area":   area,
			"userId": middleware.UserIDFromContext(r.Context()),
			"role":   middleware.RoleFromContext(r.Context()),
			"domain": string(middleware.DomainFromContext(r.Context())),
		})
	}
}
