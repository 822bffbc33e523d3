package dashboards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/reviews"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

const (
	adminCacheName     = "admin_dashboard"
	defaultAdminTTL    = 30 * time.Second
	recentPendingLimit = 5
	ownerReviewLimit   = 20
)

// Service builds the three dashboard projections.
type Service interface {
	Admin(ctx context.Context) (*AdminDashboard, error)
	Owner(ctx context.Context, ownerID uuid.UUID) (*OwnerDashboard, error)
	Parent(ctx context.Context, authorID uuid.UUID, params pagination.Params) (*ParentDashboard, error)
	InvalidateAdmin(ctx context.Context) error
}

type reviewReader interface {
	CountByStatus(ctx context.Context) (reviews.StatusCounts, error)
	List(ctx context.Context, query reviews.ListQuery) (pagination.Page[reviews.ReviewDTO], error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID, query reviews.ListQuery) (pagination.Page[reviews.ReviewDTO], error)
}

type nurseryReader interface {
	CountAll(ctx context.Context) (int64, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Nursery, error)
	RatingSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]nurseries.RatingSummary, error)
	ApprovedReviews(ctx context.Context, nurseryID uuid.UUID, limit int) ([]models.Review, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context) (int64, error)
}

// cacheStore is the redis surface used for the admin snapshot.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(name string) string
}

type ServiceParams struct {
	Reviews       reviewReader
	Nurseries     nurseryReader
	Notifications unreadCounter
	Cache         cacheStore
	CacheTTL      time.Duration
	Logger        *logger.Logger
}

type service struct {
	reviews       reviewReader
	nurseries     nurseryReader
	notifications unreadCounter
	cache         cacheStore
	cacheTTL      time.Duration
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Reviews == nil {
		return nil, fmt.Errorf("review reader is required")
	}
	if params.Nurseries == nil {
		return nil, fmt.Errorf("nursery reader is required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notification counter is required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultAdminTTL
	}
	return &service{
		reviews:       params.Reviews,
		nurseries:     params.Nurseries,
		notifications: params.Notifications,
		cache:         params.Cache,
		cacheTTL:      ttl,
		logg:          params.Logger,
		now:           time.Now,
	}, nil
}

// Admin serves the overview from the redis snapshot when present. Cache
// failures are logged and the dashboard is computed from the database.
func (s *service) Admin(ctx context.Context) (*AdminDashboard, error) {
	if cached, ok := s.cachedAdmin(ctx); ok {
		return cached, nil
	}

	counts, err := s.reviews.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.nurseries.CountAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count nurseries")
	}
	unread, err := s.notifications.CountUnread(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	pending, err := s.reviews.List(ctx, reviews.ListQuery{
		Filter: enums.ReviewFilterPending,
		Sort:   enums.ReviewSortCreatedAt,
		Dir:    enums.SortDesc,
		Limit:  recentPendingLimit,
	})
	if err != nil {
		return nil, err
	}

	out := &AdminDashboard{
		Reviews:             counts,
		TotalNurseries:      total,
		UnreadNotifications: unread,
		RecentPending:       pending.Items,
		GeneratedAt:         s.now().UTC(),
	}
	s.storeAdmin(ctx, out)
	return out, nil
}

func (s *service) InvalidateAdmin(ctx context.Context) error {
	return NewAdminCache(s.cache).InvalidateAdmin(ctx)
}

// AdminCache deletes the cached admin overview. It needs only the cache, so
// services built before the dashboards can hold one.
type AdminCache struct {
	cache cacheStore
}

func NewAdminCache(cache cacheStore) *AdminCache {
	return &AdminCache{cache: cache}
}

func (c *AdminCache) InvalidateAdmin(ctx context.Context) error {
	if c == nil || c.cache == nil {
		return nil
	}
	return c.cache.Del(ctx, c.cache.CacheKey(adminCacheName))
}

func (s *service) cachedAdmin(ctx context.Context) (*AdminDashboard, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(adminCacheName))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.warn(ctx, "admin dashboard cache read failed", err)
		}
		return nil, false
	}
	var out AdminDashboard
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.warn(ctx, "admin dashboard cache decode failed", err)
		return nil, false
	}
	return &out, true
}

func (s *service) storeAdmin(ctx context.Context, dash *AdminDashboard) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(dash)
	if err != nil {
		s.warn(ctx, "admin dashboard encode failed", err)
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey(adminCacheName), string(payload), s.cacheTTL); err != nil {
		s.warn(ctx, "admin dashboard cache write failed", err)
	}
}

func (s *service) Owner(ctx context.Context, ownerID uuid.UUID) (*OwnerDashboard, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	owned, err := s.nurseries.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list owner nurseries")
	}
	ids := make([]uuid.UUID, 0, len(owned))
	for _, n := range owned {
		ids = append(ids, n.ID)
	}
	summaries, err := s.nurseries.RatingSummaries(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ratings")
	}

	out := &OwnerDashboard{Nurseries: make([]OwnerNursery, 0, len(owned))}
	var overall nurseries.RatingSummary
	for i := range owned {
		n := &owned[i]
		rows, err := s.nurseries.ApprovedReviews(ctx, n.ID, ownerReviewLimit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load approved reviews")
		}
		summary := summaries[n.ID]
		overall.Count += summary.Count
		overall.Sum += summary.Sum

		entry := OwnerNursery{
			NurseryDTO:    nurseries.FromModel(n),
			AverageRating: summary.Average(),
			Reviews:       make([]nurseries.PublicReview, 0, len(rows)),
		}
		for _, rv := range rows {
			entry.Reviews = append(entry.Reviews, nurseries.PublicReview{
				ID:        rv.ID,
				Rating:    rv.Rating,
				Title:     rv.Title,
				Content:   rv.Content,
				FirstName: rv.FirstName,
				CreatedAt: rv.CreatedAt,
			})
		}
		out.TotalReviews += n.ReviewCount
		out.Nurseries = append(out.Nurseries, entry)
	}
	out.AverageRating = overall.Average()
	return out, nil
}

func (s *service) Parent(ctx context.Context, authorID uuid.UUID, params pagination.Params) (*ParentDashboard, error) {
	page, err := s.reviews.ListByAuthor(ctx, authorID, reviews.ListQuery{
		Filter: enums.ReviewFilterAll,
		Sort:   enums.ReviewSortCreatedAt,
		Dir:    enums.SortDesc,
		Limit:  params.Limit,
		Cursor: params.Cursor,
	})
	if err != nil {
		return nil, err
	}
	out := &ParentDashboard{Reviews: page.Items, NextCursor: page.NextCursor}
	for _, r := range page.Items {
		switch r.Status {
		case enums.ReviewStatusApproved:
			out.Approved++
		case enums.ReviewStatusRejected:
			out.Rejected++
		default:
			out.Pending++
		}
	}
	return out, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
