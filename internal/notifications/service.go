package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// Service defines the moderation feed operations.
type Service interface {
	Recent(ctx context.Context, limit int) (*RecentResult, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*MarkReadResult, error)
	MarkAllRead(ctx context.Context) (int64, error)
	Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Notification, error)
}

// Writer is the slice of Service other modules use to record a notification
// inside their own transaction.
type Writer interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Notification, error)
}

// dashboardCache drops cached projections that embed the unread count.
type dashboardCache interface {
	InvalidateAdmin(ctx context.Context) error
}

type Option func(*service)

// WithDashboardCache invalidates the admin dashboard whenever a mark-read
// call changes the unread count.
func WithDashboardCache(cache dashboardCache) Option {
	return func(s *service) { s.cache = cache }
}

func WithLogger(logg *logger.Logger) Option {
	return func(s *service) { s.logg = logg }
}

type service struct {
	repo  Repository
	cache dashboardCache
	logg  *logger.Logger
	now   func() time.Time
}

// NotificationDTO is the wire shape of a feed entry.
type NotificationDTO struct {
	ID         uuid.UUID                    `json:"id"`
	Title      string                       `json:"title"`
	Message    string                       `json:"message"`
	EntityType enums.NotificationEntityType `json:"entityType"`
	EntityID   uuid.UUID                    `json:"entityId"`
	IsRead     bool                         `json:"isRead"`
	ReadAt     *time.Time                   `json:"readAt,omitempty"`
	CreatedAt  time.Time                    `json:"createdAt"`
}

// RecentResult is the newest-first feed plus the global unread count.
type RecentResult struct {
	Notifications []NotificationDTO `json:"notifications"`
	UnreadCount   int64             `json:"unreadCount"`
}

// MarkReadResult reports whether the call moved the notification to read.
type MarkReadResult struct {
	ID      uuid.UUID `json:"id"`
	Changed bool      `json:"changed"`
}

// CreateInput describes a notification about an entity.
type CreateInput struct {
	Title      string
	Message    string
	EntityType enums.NotificationEntityType
	EntityID   uuid.UUID
}

// NewService wires notifications dependencies.
func NewService(repo Repository, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	svc := &service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	return svc, nil
}

// ClampLimit applies the feed default and bounds.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	}
	return limit
}

func (s *service) Recent(ctx context.Context, limit int) (*RecentResult, error) {
	rows, err := s.repo.Recent(ctx, ClampLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	items := make([]NotificationDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return &RecentResult{Notifications: items, UnreadCount: unread}, nil
}

func (s *service) MarkRead(ctx context.Context, id uuid.UUID) (*MarkReadResult, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, id, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	if result.Updated {
		s.invalidateDashboard(ctx)
	}
	return &MarkReadResult{ID: id, Changed: result.Updated}, nil
}

func (s *service) MarkAllRead(ctx context.Context) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	if count > 0 {
		s.invalidateDashboard(ctx)
	}
	return count, nil
}

// invalidateDashboard is best effort; the cached snapshot expires on its own.
func (s *service) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAdmin(ctx); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "notifications.dashboard_invalidate_failed")
	}
}

// Create writes the notification with the caller's transaction so it commits
// together with the change it describes.
func (s *service) Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Notification, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notification requires a transaction")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification title required")
	}
	if !input.EntityType.IsValid() || input.EntityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification entity required")
	}

	row := &models.Notification{
		Title:      title,
		Message:    strings.TrimSpace(input.Message),
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return row, nil
}

func FromModel(n *models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:         n.ID,
		Title:      n.Title,
		Message:    n.Message,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		IsRead:     n.IsRead,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}
