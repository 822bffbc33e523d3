package client

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

const adminReviews = "/api/admin/v1/reviews"

// ListReviews fetches one moderation page. Rows repeated in the payload are
// collapsed to the first occurrence.
func (c *Client) ListReviews(ctx context.Context, q ReviewQuery) (*ReviewPage, error) {
	req := get(adminReviews).
		param("status", q.Status).
		param("q", strings.TrimSpace(q.Search)).
		param("sort", q.Sort).
		param("dir", q.Direction).
		param("cursor", q.Cursor)
	if q.Limit > 0 {
		req = req.param("limit", strconv.Itoa(q.Limit))
	}
	page, err := do[ReviewPage](ctx, c, req)
	if err != nil {
		return nil, err
	}
	page.Items = pagination.DedupeBy(page.Items, func(r Review) uuid.UUID { return r.ID })
	return &page, nil
}

func (c *Client) ReviewCounts(ctx context.Context) (*ReviewCounts, error) {
	counts, err := do[ReviewCounts](ctx, c, get(adminReviews+"/counts"))
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

func (c *Client) GetReview(ctx context.Context, id uuid.UUID) (*Review, error) {
	review, err := do[Review](ctx, c, get(adminReviews+"/"+id.String()))
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (c *Client) ApproveReview(ctx context.Context, id uuid.UUID) (*ModerationResult, error) {
	return c.moderate(ctx, post(adminReviews+"/"+id.String()+"/approve"))
}

func (c *Client) RejectReview(ctx context.Context, id uuid.UUID) (*ModerationResult, error) {
	return c.moderate(ctx, post(adminReviews+"/"+id.String()+"/reject"))
}

// DeleteReview removes a review for good. Callers are expected to have
// confirmed the action with the user first.
func (c *Client) DeleteReview(ctx context.Context, id uuid.UUID) (*ModerationResult, error) {
	return c.moderate(ctx, del(adminReviews+"/"+id.String()))
}

func (c *Client) moderate(ctx context.Context, req request) (*ModerationResult, error) {
	res, err := do[ModerationResult](ctx, c, req.idempotent(uuid.NewString()))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ValidateReview runs the form checks the API would otherwise reject.
func ValidateReview(in SubmitReviewInput) error {
	switch {
	case in.Rating < 1 || in.Rating > 5:
		return validationError("rating", "Please choose a rating from 1 to 5")
	case strings.TrimSpace(in.Title) == "":
		return validationError("title", "Please enter a title")
	case strings.TrimSpace(in.Content) == "":
		return validationError("content", "Please write your review")
	case strings.TrimSpace(in.FirstName) == "":
		return validationError("firstName", "Please enter your first name")
	case strings.TrimSpace(in.LastName) == "":
		return validationError("lastName", "Please enter your last name")
	}
	return ValidateEmail(in.Email)
}

func (c *Client) SubmitReview(ctx context.Context, nurseryID uuid.UUID, in SubmitReviewInput) (*Review, error) {
	if nurseryID == uuid.Nil {
		return nil, validationError("nurseryId", "Please choose a nursery")
	}
	if err := ValidateReview(in); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Email = strings.TrimSpace(in.Email)
	path := "/api/v1/nurseries/" + nurseryID.String() + "/reviews"
	review, err := do[Review](ctx, c, post(path).json(in).idempotent(uuid.NewString()))
	if err != nil {
		return nil, err
	}
	return &review, nil
}
