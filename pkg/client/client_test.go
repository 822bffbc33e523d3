package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "client-test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Timeout: time.Second}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, &calls
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": message}})
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatalf("expected error without base url")
	}
}

func TestLoginRejectsMalformedEmailWithoutDispatch(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, nil)
	})

	_, err := c.AdminLogin(context.Background(), "not-an-email", "secret")
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error got %v", err)
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.Message != MsgInvalidEmail || ce.Field != "email" {
		t.Fatalf("unexpected error %#v", err)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("expected no request to be sent")
	}
}

func TestLoginUsesDomainEndpoint(t *testing.T) {
	var path string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		writeData(w, http.StatusOK, LoginResult{
			AccessToken: "access",
			Domain:      enums.SessionDomainAdmin,
			User:        &User{ID: uuid.New(), Email: "admin@example.com", Role: enums.RoleAdmin},
		})
	})

	res, err := c.AdminLogin(context.Background(), "admin@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if path != "/api/admin/v1/auth/login" {
		t.Fatalf("unexpected path %s", path)
	}
	if res.User.Role != enums.RoleAdmin {
		t.Fatalf("expected admin user")
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status    int
		kind      Kind
		retryable bool
	}{
		{http.StatusBadRequest, KindValidation, false},
		{http.StatusUnprocessableEntity, KindValidation, false},
		{http.StatusUnauthorized, KindAuth, false},
		{http.StatusForbidden, KindAuth, false},
		{http.StatusNotFound, KindNotFound, false},
		{http.StatusConflict, KindConflict, false},
		{http.StatusTooManyRequests, KindNetwork, true},
		{http.StatusInternalServerError, KindNetwork, false},
		{http.StatusServiceUnavailable, KindNetwork, false},
	}
	for _, tc := range cases {
		status := tc.status
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeErr(w, status, "CODE", "server said no")
		})
		_, err := c.GetReview(context.Background(), uuid.New())
		var ce *Error
		if !errors.As(err, &ce) {
			t.Fatalf("%d: expected client error got %v", tc.status, err)
		}
		if ce.Kind != tc.kind || ce.Retryable != tc.retryable || ce.Status != tc.status {
			t.Fatalf("%d: got kind=%s retryable=%v", tc.status, ce.Kind, ce.Retryable)
		}
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeData(w, http.StatusOK, nil)
	}))
	defer srv.Close()
	c, err := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = c.ReviewCounts(context.Background())
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network error got %v", err)
	}
	msg, ok := Toast(err)
	if !ok || msg == "" {
		t.Fatalf("expected toast for timeout")
	}
}

func TestToastAndSignIn(t *testing.T) {
	if _, ok := Toast(nil); ok {
		t.Fatalf("nil error should not toast")
	}
	auth := &Error{Kind: KindAuth, Message: "expired"}
	if _, ok := Toast(auth); ok {
		t.Fatalf("auth errors redirect instead of toasting")
	}
	if !RequiresSignIn(auth) {
		t.Fatalf("expected auth error to require sign in")
	}
	if msg, _ := Toast(&Error{Kind: KindConflict, Message: "already gone"}); msg != "already gone" {
		t.Fatalf("expected server message got %q", msg)
	}
	if msg, _ := Toast(&Error{Kind: KindNotFound}); msg != GenericMessage {
		t.Fatalf("expected generic fallback got %q", msg)
	}
	if msg, _ := Toast(errors.New("boom")); msg != GenericMessage {
		t.Fatalf("expected generic fallback for foreign errors got %q", msg)
	}
}

func TestListReviewsDedupesAndSendsQuery(t *testing.T) {
	dup := uuid.New()
	other := uuid.New()
	var query map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		writeData(w, http.StatusOK, ReviewPage{Items: []Review{
			{ID: dup, Title: "first"},
			{ID: other, Title: "other"},
			{ID: dup, Title: "second"},
		}})
	})

	page, err := c.ListReviews(context.Background(), ReviewQuery{Status: "pending", Search: " smith ", Sort: "rating", Direction: "asc", Limit: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Title != "first" || page.Items[1].ID != other {
		t.Fatalf("unexpected items %+v", page.Items)
	}
	want := map[string]string{"status": "pending", "q": "smith", "sort": "rating", "dir": "asc", "limit": "20"}
	for k, v := range want {
		if query[k] != v {
			t.Fatalf("query %s: got %q want %q", k, query[k], v)
		}
	}
	if _, ok := query["cursor"]; ok {
		t.Fatalf("empty cursor should be omitted")
	}
}

func TestModerationSendsTokenAndIdempotencyKey(t *testing.T) {
	id := uuid.New()
	var auth, key, method, path string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		key = r.Header.Get(idempotencyHeader)
		method, path = r.Method, r.URL.Path
		writeData(w, http.StatusOK, ModerationResult{Review: Review{ID: id, Status: enums.ReviewStatusApproved}, Changed: true})
	})
	c = c.WithTokens(func() string { return "tok" })

	res, err := c.ApproveReview(context.Background(), id)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !res.Changed || res.Review.Status != enums.ReviewStatusApproved {
		t.Fatalf("unexpected result %+v", res)
	}
	if auth != "Bearer tok" || key == "" {
		t.Fatalf("expected bearer and idempotency key, got %q %q", auth, key)
	}
	if method != http.MethodPost || path != "/api/admin/v1/reviews/"+id.String()+"/approve" {
		t.Fatalf("unexpected request %s %s", method, path)
	}

	if _, err := c.DeleteReview(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if method != http.MethodDelete || path != "/api/admin/v1/reviews/"+id.String() {
		t.Fatalf("unexpected delete request %s %s", method, path)
	}
}

func TestSubmitReviewValidatesLocally(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusCreated, Review{ID: uuid.New(), Status: enums.ReviewStatusPending})
	})
	valid := SubmitReviewInput{Rating: 5, Title: "Great", Content: "Lovely staff", FirstName: "Sam", LastName: "Lee", Email: "sam@example.com"}

	bad := []SubmitReviewInput{}
	for _, mutate := range []func(*SubmitReviewInput){
		func(in *SubmitReviewInput) { in.Rating = 0 },
		func(in *SubmitReviewInput) { in.Rating = 6 },
		func(in *SubmitReviewInput) { in.Title = "   " },
		func(in *SubmitReviewInput) { in.Content = "" },
		func(in *SubmitReviewInput) { in.Email = "not-an-email" },
	} {
		in := valid
		mutate(&in)
		bad = append(bad, in)
	}
	for _, in := range bad {
		if _, err := c.SubmitReview(context.Background(), uuid.New(), in); KindOf(err) != KindValidation {
			t.Fatalf("expected validation error for %+v got %v", in, err)
		}
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("invalid input must not be sent")
	}

	review, err := c.SubmitReview(context.Background(), uuid.New(), valid)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if review.Status != enums.ReviewStatusPending {
		t.Fatalf("expected pending review")
	}
}

func TestRecentNotificationsCollapsesRepeatedRows(t *testing.T) {
	dup := uuid.New()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("limit: got %q", r.URL.Query().Get("limit"))
		}
		writeData(w, http.StatusOK, RecentNotifications{
			Notifications: []Notification{{ID: dup, Title: "first"}, {ID: uuid.New()}, {ID: dup, Title: "second"}},
			UnreadCount:   3,
		})
	})

	res, err := c.RecentNotifications(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(res.Notifications) != 2 || res.Notifications[0].Title != "first" {
		t.Fatalf("unexpected notifications %+v", res.Notifications)
	}
	if res.UnreadCount != 3 {
		t.Fatalf("unread count should pass through, got %d", res.UnreadCount)
	}
}
