package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
)

type fakeRepository struct {
	recentFn      func(ctx context.Context, limit int) ([]models.Notification, error)
	countUnreadFn func(ctx context.Context) (int64, error)
	markReadFn    func(ctx context.Context, id uuid.UUID, now time.Time) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, now time.Time) (int64, error)
	created       []*models.Notification
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	f.created = append(f.created, notification)
	return nil
}

func (f *fakeRepository) Recent(ctx context.Context, limit int) ([]models.Notification, error) {
	if f.recentFn != nil {
		return f.recentFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeRepository) CountUnread(ctx context.Context) (int64, error) {
	if f.countUnreadFn != nil {
		return f.countUnreadFn(ctx)
	}
	return 0, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, id uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, id, now)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, now)
	}
	return 0, nil
}

func newServiceWithRepo(repo Repository) Service {
	svc, _ := NewService(repo)
	return svc
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-5: 10, 0: 10, 1: 1, 50: 50, 100: 100, 101: 100, 1000: 100}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestService_Recent(t *testing.T) {
	first := models.Notification{ID: uuid.New(), Title: "New review", CreatedAt: time.Now()}
	var gotLimit int
	repo := &fakeRepository{
		recentFn: func(ctx context.Context, limit int) ([]models.Notification, error) {
			gotLimit = limit
			return []models.Notification{first}, nil
		},
		countUnreadFn: func(ctx context.Context) (int64, error) {
			return 7, nil
		},
	}

	svc := newServiceWithRepo(repo)
	result, err := svc.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected recent error: %v", err)
	}
	if gotLimit != DefaultRecentLimit {
		t.Fatalf("expected default limit, got %d", gotLimit)
	}
	if len(result.Notifications) != 1 || result.Notifications[0].ID != first.ID {
		t.Fatalf("unexpected notifications %+v", result.Notifications)
	}
	if result.UnreadCount != 7 {
		t.Fatalf("expected unread 7, got %d", result.UnreadCount)
	}
}

func TestService_RecentEmptyIsNotNil(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	result, err := svc.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected recent error: %v", err)
	}
	if result.Notifications == nil {
		t.Fatal("expected empty slice, got nil")
	}
}

func TestService_RecentDependencyError(t *testing.T) {
	repo := &fakeRepository{
		countUnreadFn: func(ctx context.Context) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	svc := newServiceWithRepo(repo)
	_, err := svc.Recent(context.Background(), 5)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestService_MarkRead(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, id uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: true}, nil
		},
	}
	svc := newServiceWithRepo(repo)
	result, err := svc.MarkRead(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
	if !result.Changed {
		t.Fatal("expected changed result")
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, id uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc := newServiceWithRepo(repo)
	if _, err := svc.MarkRead(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected not found error")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_MarkReadRequiresID(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	if _, err := svc.MarkRead(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_MarkAllRead(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, now time.Time) (int64, error) {
			return 3, nil
		},
	}
	svc := newServiceWithRepo(repo)
	count, err := svc.MarkAllRead(context.Background())
	if err != nil {
		t.Fatalf("unexpected mark all read error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 updated rows, got %d", count)
	}
}

func TestService_MarkAllReadError(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, now time.Time) (int64, error) {
			return 0, errors.New("boom")
		},
	}
	svc := newServiceWithRepo(repo)
	if _, err := svc.MarkAllRead(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeDashboardCache struct {
	calls int
	err   error
}

func (f *fakeDashboardCache) InvalidateAdmin(ctx context.Context) error {
	f.calls++
	return f.err
}

func newServiceWithCache(t *testing.T, repo Repository, cache dashboardCache) Service {
	t.Helper()
	svc, err := NewService(repo, WithDashboardCache(cache))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_MarkReadInvalidatesAdminDashboard(t *testing.T) {
	updated := true
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, id uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: updated}, nil
		},
	}
	cache := &fakeDashboardCache{}
	svc := newServiceWithCache(t, repo, cache)

	if _, err := svc.MarkRead(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
	if cache.calls != 1 {
		t.Fatalf("expected one invalidation, got %d", cache.calls)
	}

	// already read: the unread count did not move
	updated = false
	if _, err := svc.MarkRead(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
	if cache.calls != 1 {
		t.Fatalf("expected no further invalidation, got %d", cache.calls)
	}
}

func TestService_MarkAllReadInvalidatesOnlyWhenRowsChange(t *testing.T) {
	var rows int64 = 2
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, now time.Time) (int64, error) {
			return rows, nil
		},
	}
	cache := &fakeDashboardCache{}
	svc := newServiceWithCache(t, repo, cache)

	if _, err := svc.MarkAllRead(context.Background()); err != nil {
		t.Fatalf("unexpected mark all read error: %v", err)
	}
	if cache.calls != 1 {
		t.Fatalf("expected one invalidation, got %d", cache.calls)
	}

	rows = 0
	if _, err := svc.MarkAllRead(context.Background()); err != nil {
		t.Fatalf("unexpected mark all read error: %v", err)
	}
	if cache.calls != 1 {
		t.Fatalf("expected no further invalidation, got %d", cache.calls)
	}
}

func TestService_MarkReadSurvivesInvalidationFailure(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, id uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: true}, nil
		},
		markAllReadFn: func(ctx context.Context, now time.Time) (int64, error) {
			return 1, nil
		},
	}
	cache := &fakeDashboardCache{err: errors.New("redis down")}
	svc := newServiceWithCache(t, repo, cache)

	result, err := svc.MarkRead(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
	if !result.Changed {
		t.Fatal("expected changed result")
	}
	if count, err := svc.MarkAllRead(context.Background()); err != nil || count != 1 {
		t.Fatalf("expected 1 row and no error, got %d, %v", count, err)
	}
	if cache.calls != 2 {
		t.Fatalf("expected two invalidation attempts, got %d", cache.calls)
	}
}

func TestService_CreateValidates(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(repo)
	tx := &gorm.DB{}

	if _, err := svc.Create(context.Background(), nil, CreateInput{Title: "x", EntityType: enums.NotificationEntityReview, EntityID: uuid.New()}); err == nil {
		t.Fatal("expected error without transaction")
	}
	if _, err := svc.Create(context.Background(), tx, CreateInput{Title: " ", EntityType: enums.NotificationEntityReview, EntityID: uuid.New()}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for blank title, got %v", err)
	}
	if _, err := svc.Create(context.Background(), tx, CreateInput{Title: "x", EntityType: "BOGUS", EntityID: uuid.New()}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for entity type, got %v", err)
	}

	row, err := svc.Create(context.Background(), tx, CreateInput{Title: " New review ", Message: "m", EntityType: enums.NotificationEntityReview, EntityID: uuid.New()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if row.Title != "New review" || len(repo.created) != 1 {
		t.Fatalf("unexpected create result %+v (%d rows)", row, len(repo.created))
	}
}
