package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

// ReviewSubmittedEvent records a new pending review.
type ReviewSubmittedEvent struct {
	ReviewID  uuid.UUID  `json:"review_id"`
	NurseryID uuid.UUID  `json:"nursery_id"`
	AuthorID  *uuid.UUID `json:"author_id,omitempty"`
	Rating    int        `json:"rating"`
	CreatedAt time.Time  `json:"created_at"`
}

// ReviewModeratedEvent is emitted for both approve and reject decisions.
type ReviewModeratedEvent struct {
	ReviewID       uuid.UUID          `json:"review_id"`
	NurseryID      uuid.UUID          `json:"nursery_id"`
	PreviousStatus enums.ReviewStatus `json:"previous_status"`
	Status         enums.ReviewStatus `json:"status"`
	ReviewCount    int                `json:"review_count"`
	ModeratedAt    time.Time          `json:"moderated_at"`
}

// ReviewDeletedEvent records a hard delete of a review row.
type ReviewDeletedEvent struct {
	ReviewID       uuid.UUID          `json:"review_id"`
	NurseryID      uuid.UUID          `json:"nursery_id"`
	PreviousStatus enums.ReviewStatus `json:"previous_status"`
	ReviewCount    int                `json:"review_count"`
}

// NurseryApprovedEvent marks a nursery becoming publicly listed.
type NurseryApprovedEvent struct {
	NurseryID  uuid.UUID `json:"nursery_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Slug       string    `json:"slug"`
	ApprovedAt time.Time `json:"approved_at"`
}
