package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimitBlocksAfterLimit(t *testing.T) {
	handler := IPRateLimit(2, time.Minute, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/nurseries/x/reviews", nil)
		req.RemoteAddr = "9.9.9.9:1000"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/v1/nurseries/x/reviews", nil)
	other.RemoteAddr = "8.8.8.8:1000"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, other)
	if resp.Code != http.StatusOK {
		t.Fatalf("other IPs keep their own budget, got %d", resp.Code)
	}
}

func TestIPRateLimitDisabled(t *testing.T) {
	handler := IPRateLimit(0, time.Minute, nil)(okHandler())
	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected pass through, got %d", resp.Code)
		}
	}
}
