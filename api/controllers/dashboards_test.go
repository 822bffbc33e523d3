package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/api/middleware"
	"github.com/nurseryfinder/nurseryfinder-backend/internal/dashboards"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/pagination"
)

type stubDashboards struct {
	ownerID  uuid.UUID
	authorID uuid.UUID
	params   pagination.Params
}

func (s *stubDashboards) Admin(ctx context.Context) (*dashboards.AdminDashboard, error) {
	return &dashboards.AdminDashboard{TotalNurseries: 2}, nil
}

func (s *stubDashboards) Owner(ctx context.Context, ownerID uuid.UUID) (*dashboards.OwnerDashboard, error) {
	s.ownerID = ownerID
	return &dashboards.OwnerDashboard{TotalReviews: 7}, nil
}

func (s *stubDashboards) Parent(ctx context.Context, authorID uuid.UUID, params pagination.Params) (*dashboards.ParentDashboard, error) {
	s.authorID = authorID
	s.params = params
	return &dashboards.ParentDashboard{}, nil
}

func (s *stubDashboards) InvalidateAdmin(ctx context.Context) error { return nil }

func TestOwnerDashboardUsesSessionUser(t *testing.T) {
	svc := &stubDashboards{}
	ownerID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/owner", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), ownerID.String(), enums.RoleNurseryOwner, enums.SessionDomainUser))
	resp := httptest.NewRecorder()
	OwnerDashboard(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.ownerID != ownerID {
		t.Fatalf("expected owner %s got %s", ownerID, svc.ownerID)
	}
}

func TestParentDashboardRequiresIdentity(t *testing.T) {
	svc := &stubDashboards{}
	resp := httptest.NewRecorder()
	ParentDashboard(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/parent", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	authorID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/parent?limit=3&cursor=abc", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), authorID.String(), enums.RoleParent, enums.SessionDomainUser))
	resp = httptest.NewRecorder()
	ParentDashboard(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.authorID != authorID || svc.params.Limit != 3 || svc.params.Cursor != "abc" {
		t.Fatalf("unexpected call author=%s params=%+v", svc.authorID, svc.params)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}}, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestPageShell(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), userID.String(), enums.RoleAdmin, enums.SessionDomainAdmin))
	resp := httptest.NewRecorder()
	PageShell("admin")(resp, req)
	body := decodeData[map[string]string](t, resp)
	if body["area"] != "admin" || body["userId"] != userID.String() || body["domain"] != "admin" {
		t.Fatalf("unexpected shell %v", body)
	}
}
