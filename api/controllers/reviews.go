package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/api/middleware"
	"github.com/nurseryfinder/nurseryfinder-backend/api/responses"
	"github.com/nurseryfinder/nurseryfinder-backend/api/validators"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/reviews"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox"
)

const maxSearchLength = 120

// SubmitReview accepts a public review for a nursery. A signed-in user is
// recorded as the author.
func SubmitReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reviews service unavailable"))
			return
		}

		nurseryID, err := parseUUIDParam(r, NurseryRefParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// path and session fields are set first so validation sees them
		body := reviews.SubmitInput{NurseryID: nurseryID}
		if authorID, ok := middleware.UserUUIDFromContext(r.Context()); ok {
			body.AuthorID = &authorID
		}
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.Submit(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, review)
	}
}

// AdminListReviews serves the moderation queue.
func AdminListReviews(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reviews service unavailable"))
			return
		}

		query, err := parseReviewListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminReviewCounts returns the number of reviews in each moderation state.
func AdminReviewCounts(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reviews service unavailable"))
			return
		}
		counts, err := svc.CountByStatus(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, counts)
	}
}

func AdminGetReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reviews service unavailable"))
			return
		}
		id, err := parseUUIDParam(r, "reviewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		review, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, review)
	}
}

type moderationFunc func(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*reviews.ModerationResult, error)

func AdminApproveReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return moderationHandler(nil, logg)
	}
	return moderationHandler(svc.Approve, logg)
}

func AdminRejectReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return moderationHandler(nil, logg)
	}
	return moderationHandler(svc.Reject, logg)
}

// AdminDeleteReview removes a review. Confirmation happens in the client
// before this call is made.
func AdminDeleteReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return moderationHandler(nil, logg)
	}
	return moderationHandler(svc.Delete, logg)
}

func moderationHandler(action moderationFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if action == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reviews service unavailable"))
			return
		}
		id, err := parseUUIDParam(r, "reviewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := action(r.Context(), id, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseReviewListQuery(r *http.Request) (reviews.ListQuery, error) {
	q := r.URL.Query()
	filter, err := enums.ParseReviewFilter(q.Get("status"))
	if err != nil {
		return reviews.ListQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"})
	}
	sortField, err := enums.ParseReviewSortField(q.Get("sort"))
	if err != nil {
		return reviews.ListQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sort field").WithDetails(map[string]any{"field": "sort"})
	}
	dir, err := enums.ParseSortDirection(q.Get("dir"))
	if err != nil {
		return reviews.ListQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sort direction").WithDetails(map[string]any{"field": "dir"})
	}
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
	if err != nil {
		return reviews.ListQuery{}, err
	}
	return reviews.ListQuery{
		Filter: filter,
		Search: validators.ParseQueryString(r, "q", maxSearchLength),
		Sort:   sortField,
		Dir:    dir,
		Limit:  limit,
		Cursor: q.Get("cursor"),
	}, nil
}
