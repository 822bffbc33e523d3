package client

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

type User struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Phone      *string    `json:"phone,omitempty"`
	Role       enums.Role `json:"role"`
	IsVerified bool       `json:"isVerified"`
}

type LoginResult struct {
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
	Domain       enums.SessionDomain `json:"domain"`
	User         *User               `json:"user"`
	NurseryName  *string             `json:"nurseryName,omitempty"`
}

// Review is a moderation row with the nursery and reviewer inlined.
type Review struct {
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

type ReviewQuery struct {
	Status    string
	Search    string
	Sort      string
	Direction string
	Cursor    string
	Limit     int
}

type ReviewPage struct {
	Items      []Review `json:"items"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

type ReviewCounts struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Total    int64 `json:"total"`
}

type ModerationResult struct {
	Review         Review             `json:"review"`
	PreviousStatus enums.ReviewStatus `json:"previousStatus"`
	Changed        bool               `json:"changed"`
	ReviewCount    int                `json:"reviewCount"`
}

// SubmitReviewInput is what a visitor fills in on a nursery page.
type SubmitReviewInput struct {
	Rating    int    `json:"rating"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type Notification struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	EntityType string     `json:"entityType"`
	EntityID   uuid.UUID  `json:"entityId"`
	IsRead     bool       `json:"isRead"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type RecentNotifications struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unreadCount"`
}

type MarkReadResult struct {
	ID      uuid.UUID `json:"id"`
	Changed bool      `json:"changed"`
}
