package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
)

type memoryCounters struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemoryCounters() *memoryCounters {
	return &memoryCounters{counts: map[string]int64{}}
}

func (m *memoryCounters) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func reviewBody(email string) string {
	return `{"rating":5,"title":"Lovely","content":"Great staff","firstName":"Sam","lastName":"Lee","email":"` + email + `"}`
}

func TestThrottleReviewSubmissionsPerEmail(t *testing.T) {
	policy := ReviewThrottle(config.RateLimitConfig{ReviewSubmitEmailLimit: 2, ReviewSubmitWindow: time.Hour})
	var seen []string
	handler := Throttle(policy, newMemoryCounters(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, string(body))
		w.WriteHeader(http.StatusCreated)
	}))

	submit := func(ip, email string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/nurseries/x/reviews", strings.NewReader(reviewBody(email)))
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// changing IP does not reset the per-email budget
	if rec := submit("10.0.0.1", "sam@example.com"); rec.Code != http.StatusCreated {
		t.Fatalf("first submission: got %d", rec.Code)
	}
	if rec := submit("10.0.0.2", " SAM@example.com "); rec.Code != http.StatusCreated {
		t.Fatalf("second submission: got %d", rec.Code)
	}
	rec := submit("10.0.0.3", "sam@example.com")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeRateLimit) {
		t.Fatalf("unexpected code %s", code)
	}
	if got := rec.Header().Get("Retry-After"); got != "3600" {
		t.Fatalf("expected Retry-After 3600, got %q", got)
	}

	if rec := submit("10.0.0.3", "other@example.com"); rec.Code != http.StatusCreated {
		t.Fatalf("other reviewers keep their own budget, got %d", rec.Code)
	}
	if len(seen) != 3 || seen[0] != reviewBody("sam@example.com") {
		t.Fatalf("handler should see the untouched body, got %v", seen)
	}
}

func TestThrottleLoginPerIP(t *testing.T) {
	policy := LoginThrottle(config.AuthRateLimitConfig{LoginWindow: time.Minute, LoginIPLimit: 1})
	handler := Throttle(policy, newMemoryCounters(), nil)(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@example.com","password":"pw"}`))
		req.Header.Set("X-Forwarded-For", "not-an-ip, 203.0.113.9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("attempt %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

func TestThrottleSkipsOversizedBodies(t *testing.T) {
	policy := RegisterThrottle(config.AuthRateLimitConfig{RegisterWindow: time.Minute, RegisterEmailLimit: 1})
	store := newMemoryCounters()
	payload := `{"email":"big@example.com","pad":"` + strings.Repeat("x", maxThrottlePeek) + `"}`
	var got int
	handler := Throttle(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = len(body)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass through, got %d", rec.Code)
	}
	if got != len(payload) {
		t.Fatalf("body truncated: got %d of %d bytes", got, len(payload))
	}
	if len(store.counts) != 0 {
		t.Fatalf("oversized body should not be counted: %v", store.counts)
	}
}

func TestThrottleStoreFailure(t *testing.T) {
	store := newMemoryCounters()
	store.err = errors.New("redis down")
	handler := Throttle(ReviewThrottle(config.RateLimitConfig{ReviewSubmitEmailLimit: 3, ReviewSubmitWindow: time.Hour}), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(reviewBody("sam@example.com"))))
	if code := errorCode(t, rec); code != string(pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %s (%d)", code, rec.Code)
	}
}

func TestThrottleDisabledPolicies(t *testing.T) {
	store := newMemoryCounters()
	policies := []ThrottlePolicy{
		ReviewThrottle(config.RateLimitConfig{ReviewSubmitWindow: time.Hour}),
		LoginThrottle(config.AuthRateLimitConfig{LoginIPLimit: 5}),
	}
	for _, policy := range policies {
		handler := Throttle(policy, store, nil)(okHandler())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(reviewBody("a@example.com"))))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected pass through, got %d", policy.Name, rec.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("disabled policies should not count: %v", store.counts)
	}
}
