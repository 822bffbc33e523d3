package dashboards

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/reviews"
)

// AdminDashboard is the moderation overview.
type AdminDashboard struct {
	Reviews             reviews.StatusCounts `json:"reviews"`
	TotalNurseries      int64                `json:"totalNurseries"`
	UnreadNotifications int64                `json:"unreadNotifications"`
	RecentPending       []reviews.ReviewDTO  `json:"recentPending"`
	GeneratedAt         time.Time            `json:"generatedAt"`
}

// OwnerNursery is one of the owner's nurseries with its approved reviews.
type OwnerNursery struct {
	nurseries.NurseryDTO
	AverageRating decimal.Decimal          `json:"averageRating"`
	Reviews       []nurseries.PublicReview `json:"reviews"`
}

// OwnerDashboard is the read-only view for a NURSERY_OWNER.
type OwnerDashboard struct {
	Nurseries     []OwnerNursery  `json:"nurseries"`
	TotalReviews  int             `json:"totalReviews"`
	AverageRating decimal.Decimal `json:"averageRating"`
}

// ParentDashboard lists the parent's own reviews in every status. The
// status counts cover the returned page.
type ParentDashboard struct {
	Reviews    []reviews.ReviewDTO `json:"reviews"`
	NextCursor string              `json:"nextCursor,omitempty"`
	Pending    int                 `json:"pending"`
	Approved   int                 `json:"approved"`
	Rejected   int                 `json:"rejected"`
}
