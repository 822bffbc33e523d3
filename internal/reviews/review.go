package reviews

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

// Review is the domain view of a review. Status is the only moderation
// state; the flag pair exists only in models.Review.
type Review struct {
	ID          uuid.UUID
	NurseryID   uuid.UUID
	AuthorID    *uuid.UUID
	Rating      int
	Title       string
	Content     string
	FirstName   string
	LastName    string
	Email       string
	Status      enums.ReviewStatus
	ModeratedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func fromModel(m *models.Review) (*Review, error) {
	status, err := enums.ReviewStatusFromFlags(m.IsApproved, m.IsRejected)
	if err != nil {
		return nil, fmt.Errorf("review %s: %w", m.ID, err)
	}
	return &Review{
		ID:          m.ID,
		NurseryID:   m.NurseryID,
		AuthorID:    m.AuthorID,
		Rating:      m.Rating,
		Title:       m.Title,
		Content:     m.Content,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       m.Email,
		Status:      status,
		ModeratedAt: m.ModeratedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func (r *Review) toModel() *models.Review {
	approved, rejected := r.Status.Flags()
	return &models.Review{
		ID:          r.ID,
		NurseryID:   r.NurseryID,
		AuthorID:    r.AuthorID,
		Rating:      r.Rating,
		Title:       r.Title,
		Content:     r.Content,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		IsApproved:  approved,
		IsRejected:  rejected,
		ModeratedAt: r.ModeratedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// reviewListRow is a review joined with its nursery for moderation listings.
type reviewListRow struct {
	ID          uuid.UUID
	NurseryID   uuid.UUID
	AuthorID    *uuid.UUID
	Rating      int
	Title       string
	Content     string
	FirstName   string
	LastName    string
	Email       string
	IsApproved  bool
	IsRejected  bool
	ModeratedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	NurseryName string
	NurserySlug string
}
