package nurseries

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
)

// NurseryDTO is the public listing shape.
type NurseryDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	OwnerID     uuid.UUID  `json:"ownerId"`
	GroupID     *uuid.UUID `json:"groupId,omitempty"`
	IsApproved  bool       `json:"isApproved"`
	IsVerified  bool       `json:"isVerified"`
	ReviewCount int        `json:"reviewCount"`
	Town        string     `json:"town"`
	Postcode    string     `json:"postcode"`
	Description *string    `json:"description,omitempty"`
	AgeGroups   []string   `json:"ageGroups"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// PublicReview is an approved review as shown on a nursery page. Reviewer
// email is never exposed here.
type PublicReview struct {
	ID        uuid.UUID `json:"id"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FirstName string    `json:"firstName"`
	CreatedAt time.Time `json:"createdAt"`
}

// NurseryDetail is a nursery page: the listing, its approved reviews and the
// average rating rounded to one decimal place.
type NurseryDetail struct {
	NurseryDTO
	AverageRating decimal.Decimal `json:"averageRating"`
	Reviews       []PublicReview  `json:"reviews"`
}

// CreateNurseryDTO holds the fields needed to persist a new nursery.
type CreateNurseryDTO struct {
	Name        string
	OwnerID     uuid.UUID
	GroupID     *uuid.UUID
	Town        string
	Postcode    string
	Description *string
	AgeGroups   []string
}

// RatingSummary aggregates approved ratings for one nursery.
type RatingSummary struct {
	Count int64
	Sum   int64
}

// Average returns the mean rating rounded to one decimal place, zero when
// there are no approved reviews.
func (r RatingSummary) Average() decimal.Decimal {
	if r.Count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(r.Sum).Div(decimal.NewFromInt(r.Count)).Round(1)
}

func FromModel(n *models.Nursery) NurseryDTO {
	ageGroups := []string{}
	if len(n.AgeGroups) > 0 {
		ageGroups = append(ageGroups, n.AgeGroups...)
	}
	return NurseryDTO{
		ID:          n.ID,
		Name:        n.Name,
		Slug:        n.Slug,
		OwnerID:     n.OwnerID,
		GroupID:     n.GroupID,
		IsApproved:  n.IsApproved,
		IsVerified:  n.IsVerified,
		ReviewCount: n.ReviewCount,
		Town:        n.Town,
		Postcode:    n.Postcode,
		Description: n.Description,
		AgeGroups:   ageGroups,
		CreatedAt:   n.CreatedAt,
	}
}
