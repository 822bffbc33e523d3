package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/notifications"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
)

type testNotificationsService struct {
	recentFn      func(ctx context.Context, limit int) (*notifications.RecentResult, error)
	markReadFn    func(ctx context.Context, id uuid.UUID) (*notifications.MarkReadResult, error)
	markAllReadFn func(ctx context.Context) (int64, error)
}

func (s *testNotificationsService) Recent(ctx context.Context, limit int) (*notifications.RecentResult, error) {
	return s.recentFn(ctx, limit)
}

func (s *testNotificationsService) MarkRead(ctx context.Context, id uuid.UUID) (*notifications.MarkReadResult, error) {
	return s.markReadFn(ctx, id)
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context) (int64, error) {
	return s.markAllReadFn(ctx)
}

func (s *testNotificationsService) Create(ctx context.Context, tx *gorm.DB, input notifications.CreateInput) (*models.Notification, error) {
	return nil, nil
}

func TestListNotificationsDefaultsLimit(t *testing.T) {
	var gotLimit int
	svc := &testNotificationsService{
		recentFn: func(ctx context.Context, limit int) (*notifications.RecentResult, error) {
			gotLimit = limit
			return &notifications.RecentResult{Notifications: []notifications.NotificationDTO{}, UnreadCount: 3}, nil
		},
	}

	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/notifications", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if gotLimit != notifications.DefaultRecentLimit {
		t.Fatalf("expected default limit, got %d", gotLimit)
	}
	if result := decodeData[notifications.RecentResult](t, resp); result.UnreadCount != 3 {
		t.Fatalf("expected unread count 3, got %d", result.UnreadCount)
	}
}

func TestListNotificationsRejectsOutOfRangeLimit(t *testing.T) {
	svc := &testNotificationsService{}
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/notifications?limit=1000", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkNotificationReadReportsChange(t *testing.T) {
	notificationID := uuid.New()
	calls := 0
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, id uuid.UUID) (*notifications.MarkReadResult, error) {
			calls++
			if id != notificationID {
				t.Fatalf("unexpected notification %s", id)
			}
			return &notifications.MarkReadResult{ID: id, Changed: calls == 1}, nil
		},
	}

	for i, want := range []bool{true, false} {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/notifications/"+notificationID.String()+"/read", nil)
		req = withURLParam(req, "notificationId", notificationID.String())
		resp := httptest.NewRecorder()
		MarkNotificationRead(svc, testLogger())(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("call %d: unexpected status %d", i, resp.Code)
		}
		if result := decodeData[notifications.MarkReadResult](t, resp); result.Changed != want {
			t.Fatalf("call %d: expected changed=%v", i, want)
		}
	}
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, id uuid.UUID) (*notifications.MarkReadResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "notificationId", uuid.NewString())
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	svc := &testNotificationsService{
		markAllReadFn: func(ctx context.Context) (int64, error) { return 4, nil },
	}
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got := decodeData[map[string]int64](t, resp); got["updated"] != 4 {
		t.Fatalf("unexpected body %v", got)
	}
}
