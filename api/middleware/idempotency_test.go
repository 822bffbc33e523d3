package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func keyedRequest(method, url, key, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestReplayWindowFor(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{http.MethodPost, "/api/admin/v1/reviews/4f7c/approve", moderationWindow, true},
		{http.MethodPost, "/api/admin/v1/reviews/4f7c/reject/", moderationWindow, true},
		{http.MethodDelete, "/api/admin/v1/reviews/4f7c", moderationWindow, true},
		{http.MethodPost, "/api/admin/v1/nurseries/4f7c/approve", moderationWindow, true},
		{http.MethodPost, "/api/v1/nurseries/acorn-house/reviews", replayWindow, true},
		{http.MethodPost, "/api/admin/v1/notifications/read-all", replayWindow, true},
		{http.MethodPost, "/api/admin/v1/notifications/9a/read", replayWindow, true},
		{http.MethodPost, "/api/v1/auth/register", replayWindow, true},
		{http.MethodGet, "/api/admin/v1/reviews", 0, false},
		{http.MethodPost, "/api/admin/v1/reviews//approve", 0, false},
		{http.MethodPost, "/api/admin/v1/reviews/4f7c/approve/extra", 0, false},
		{http.MethodPost, "/api/v1/auth/login", 0, false},
	}
	for _, tt := range tests {
		got, ok := replayWindowFor(tt.method, tt.path)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("%s %s: got (%v, %v) want (%v, %v)", tt.method, tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIdempotencyPassesThroughWithoutKey(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, keyedRequest(http.MethodPost, "/api/v1/nurseries/acorn/reviews", "", `{"rating":5}`))
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d", resp.Code)
		}
	}
	if calls != 2 || len(store.data) != 0 {
		t.Fatalf("expected two unkeyed submissions and nothing stored, calls=%d stored=%d", calls, len(store.data))
	}
}

func TestIdempotencyReplaysModerationResponse(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"changed":true}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(http.MethodPost, "/api/admin/v1/reviews/r1/approve", "approve-r1", ""))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, keyedRequest(http.MethodPost, "/api/admin/v1/reviews/r1/approve", "approve-r1", ""))

	if calls != 1 {
		t.Fatalf("approve ran %d times, expected 1", calls)
	}
	if second.Code != http.StatusOK || second.Body.String() != `{"data":{"changed":true}}` {
		t.Fatalf("unexpected replay %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Content-Type") != "application/json" || second.Header().Get(replayedHeader) != "true" {
		t.Fatalf("replay headers missing: %v", second.Header())
	}
	if first.Header().Get(replayedHeader) != "" {
		t.Fatal("first response must not be marked as a replay")
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/admin/v1/reviews/r1/reject", "retry", ""))
	}
	if calls != 2 {
		t.Fatalf("expected retry after 5xx to reach the handler, calls=%d", calls)
	}
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	handler := Recoverer(nil)(Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("delete blew up")
	})))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedRequest(http.MethodDelete, "/api/admin/v1/reviews/r1", "del-r1", ""))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if len(store.data) != 0 {
		t.Fatalf("claim should be released after a panic: %v", store.data)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	var (
		calls int
		inner *httptest.ResponseRecorder
		mw    http.Handler
	)
	mw = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// a second tab fires the same approve while the first is running
			inner = httptest.NewRecorder()
			mw.ServeHTTP(inner, keyedRequest(http.MethodPost, "/api/admin/v1/reviews/r1/approve", "dup", ""))
		}
		w.WriteHeader(http.StatusOK)
	}))

	outer := httptest.NewRecorder()
	mw.ServeHTTP(outer, keyedRequest(http.MethodPost, "/api/admin/v1/reviews/r1/approve", "dup", ""))

	if calls != 1 {
		t.Fatalf("handler ran %d times, expected 1", calls)
	}
	if outer.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", outer.Code)
	}
	if inner.Code != http.StatusConflict || errorCode(t, inner) != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected in-progress conflict, got %d %s", inner.Code, inner.Body.String())
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/nurseries/acorn/reviews", "xyz", `{"rating":5}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedRequest(http.MethodPost, "/api/v1/nurseries/acorn/reviews", "xyz", `{"rating":1}`))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyAppliesWhenMountedOnParentRouter(t *testing.T) {
	store := newFakeStore()
	var approvals int
	r := chi.NewRouter()
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(Idempotency(store, nil))
		r.Route("/v1/reviews", func(r chi.Router) {
			r.Post("/{reviewId}/approve", func(w http.ResponseWriter, r *http.Request) {
				approvals++
				w.WriteHeader(http.StatusOK)
			})
		})
	})

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, keyedRequest(http.MethodPost, "/api/admin/v1/reviews/r9/approve", "once", ""))
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, resp.Code)
		}
	}
	if approvals != 1 {
		t.Fatalf("approve ran %d times through the router, expected 1", approvals)
	}
}

func TestIdempotencyKeyTooLong(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(okHandler())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedRequest(http.MethodPost, "/api/v1/auth/register", strings.Repeat("k", maxIdempotencyKeyLen+1), `{}`))
	if errorCode(t, resp) != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %d %s", resp.Code, resp.Body.String())
	}
}
