package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nurseryfinder/nurseryfinder-backend/api/middleware"
	"github.com/nurseryfinder/nurseryfinder-backend/api/responses"
	"github.com/nurseryfinder/nurseryfinder-backend/api/validators"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

// NurseryRefParam is the path segment naming a nursery on public routes. It
// holds a slug for page reads and an id for review submission.
const NurseryRefParam = "nurseryRef"

// ListNurseries returns approved nurseries, optionally filtered by ?q=.
func ListNurseries(svc nurseries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "nurseries service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListPublic(r.Context(), validators.ParseQueryString(r, "q", maxSearchLength), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// GetNursery serves a nursery page with its approved reviews.
func GetNursery(svc nurseries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "nurseries service unavailable"))
			return
		}

		slug := strings.TrimSpace(chi.URLParam(r, NurseryRefParam))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slug is required"))
			return
		}

		detail, err := svc.GetBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func AdminApproveNursery(svc nurseries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "nurseries service unavailable"))
			return
		}

		id, err := parseUUIDParam(r, "nurseryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		nursery, err := svc.Approve(r.Context(), id, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nursery)
	}
}
