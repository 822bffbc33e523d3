package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

func protectedPage(rendered *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*rendered = true
		_, _ = w.Write([]byte("protected"))
	})
}

func TestPageGuardRedirectsUnauthenticated(t *testing.T) {
	cfg := testJWTConfig()
	cases := []struct {
		rule     PageRule
		path     string
		location string
	}{
		{AdminPage(), "/admin", AdminLoginPath},
		{OwnerPage(), "/dashboard/owner", NurseryLoginPath},
		{ParentPage(), "/dashboard/parent", NurseryLoginPath},
	}
	for _, tc := range cases {
		rendered := false
		handler := PageGuard(tc.rule, cfg, stubSessionVerifier{ok: true}, nil)(protectedPage(&rendered))

		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		if resp.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected 303 got %d", tc.path, resp.Code)
		}
		if loc := resp.Header().Get("Location"); loc != tc.location {
			t.Fatalf("%s: expected redirect to %s got %s", tc.path, tc.location, loc)
		}
		if rendered {
			t.Fatalf("%s: protected content must not render", tc.path)
		}
	}
}

func TestPageGuardRoleMismatchRedirectsToDomainLogin(t *testing.T) {
	cfg := testJWTConfig()
	parentToken := mintTestToken(t, cfg, uuid.New(), enums.RoleParent)
	rendered := false
	handler := PageGuard(OwnerPage(), cfg, stubSessionVerifier{ok: true}, nil)(protectedPage(&rendered))

	req := httptest.NewRequest(http.MethodGet, "/dashboard/owner", nil)
	req.Header.Set("Authorization", "Bearer "+parentToken)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusSeeOther || resp.Header().Get("Location") != NurseryLoginPath {
		t.Fatalf("expected redirect to nursery login, got %d %s", resp.Code, resp.Header().Get("Location"))
	}
	if rendered {
		t.Fatal("protected content must not render")
	}
}

func TestPageGuardAdminTokenDoesNotOpenUserPages(t *testing.T) {
	cfg := testJWTConfig()
	adminToken := mintTestToken(t, cfg, uuid.New(), enums.RoleAdmin)
	rendered := false
	handler := PageGuard(ParentPage(), cfg, stubSessionVerifier{ok: true}, nil)(protectedPage(&rendered))

	req := httptest.NewRequest(http.MethodGet, "/dashboard/parent", nil)
	req.AddCookie(&http.Cookie{Name: UserTokenCookie, Value: adminToken})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusSeeOther || rendered {
		t.Fatalf("expected redirect, got %d rendered=%v", resp.Code, rendered)
	}
}

func TestPageGuardRendersForValidCookie(t *testing.T) {
	cfg := testJWTConfig()
	adminToken := mintTestToken(t, cfg, uuid.New(), enums.RoleAdmin)
	rendered := false
	handler := PageGuard(AdminPage(), cfg, stubSessionVerifier{ok: true}, nil)(protectedPage(&rendered))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: AdminTokenCookie, Value: adminToken})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || !rendered {
		t.Fatalf("expected page to render, got %d", resp.Code)
	}
	if resp.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("protected pages must not be cached")
	}
}
