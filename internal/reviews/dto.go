package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

// SubmitInput is a public review submission. AuthorID is set when the
// submitter carries a user-domain session.
type SubmitInput struct {
	NurseryID uuid.UUID  `json:"-" validate:"required"`
	AuthorID  *uuid.UUID `json:"-"`
	Rating    int        `json:"rating" validate:"required,min=1,max=5"`
	Title     string     `json:"title" validate:"required,max=200"`
	Content   string     `json:"content" validate:"required,max=5000"`
	FirstName string     `json:"firstName" validate:"required,max=80"`
	LastName  string     `json:"lastName" validate:"required,max=80"`
	Email     string     `json:"email" validate:"required,email,max=254"`
}

// ListQuery drives the moderation listing.
type ListQuery struct {
	Filter enums.ReviewFilter
	Search string
	Sort   enums.ReviewSortField
	Dir    enums.SortDirection
	Limit  int
	Cursor string
}

// ReviewDTO is the wire shape of a review. Nursery fields are filled on
// listings and left empty on single-row responses.
type ReviewDTO struct {
	ID          uuid.UUID          `json:"id"`
	NurseryID   uuid.UUID          `json:"nurseryId"`
	NurseryName string             `json:"nurseryName,omitempty"`
	NurserySlug string             `json:"nurserySlug,omitempty"`
	AuthorID    *uuid.UUID         `json:"authorId,omitempty"`
	Rating      int                `json:"rating"`
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	FirstName   string             `json:"firstName"`
	LastName    string             `json:"lastName"`
	Email       string             `json:"email"`
	Status      enums.ReviewStatus `json:"status"`
	ModeratedAt *time.Time         `json:"moderatedAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// ModerationResult describes the outcome of approve, reject or delete.
// Changed is false when the review already held the requested status.
type ModerationResult struct {
	Review         ReviewDTO          `json:"review"`
	PreviousStatus enums.ReviewStatus `json:"previousStatus"`
	Changed        bool               `json:"changed"`
	ReviewCount    int                `json:"reviewCount"`
}

// StatusCounts is the number of reviews in each moderation state.
type StatusCounts struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Total    int64 `json:"total"`
}

func ToDTO(r *Review) ReviewDTO {
	return ReviewDTO{
		ID:          r.ID,
		NurseryID:   r.NurseryID,
		AuthorID:    r.AuthorID,
		Rating:      r.Rating,
		Title:       r.Title,
		Content:     r.Content,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Status:      r.Status,
		ModeratedAt: r.ModeratedAt,
		CreatedAt:   r.CreatedAt,
	}
}
