package httpmiddleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"ixurl.local/gee"
	"ixurl.local/internal/platform/ratelimit"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct", "203.0.113.7:5000", nil, "203.0.113.7"},
		{"untrusted peer ignores xff", "203.0.113.7:5000", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "203.0.113.7"},
		{"trusted proxy xff first hop", "10.0.0.2:5000", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.9"}, "198.51.100.1"},
		{"cloudflare wins", "127.0.0.1:5000", map[string]string{"CF-Connecting-IP": "198.51.100.2", "X-Forwarded-For": "198.51.100.3"}, "198.51.100.2"},
		{"x-real-ip", "192.168.1.1:80", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"garbage header", "172.16.0.1:80", map[string]string{"X-Forwarded-For": "not-an-ip"}, "172.16.0.1"},
		{"ula proxy", "[fd00::1]:80", map[string]string{"X-Forwarded-For": "2001:db8::1"}, "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimit_LocalBackend(t *testing.T) {
	r := gee.New()
	r.GET("/t",
		RateLimit(ratelimit.NewLocalLimiter(), "test", 2, time.Minute),
		func(ctx *gee.Context) { ctx.String(http.StatusOK, "ok") },
	)

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/t", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if got := do("203.0.113.10:1234").Code; got != http.StatusOK {
			t.Fatalf("request %d: got %d, want %d", i+1, got, http.StatusOK)
		}
	}
	rec := do("203.0.113.10:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("3rd request: got %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || secs <= 0 || secs > 60 {
		t.Fatalf("Retry-After: got %q", rec.Header().Get("Retry-After"))
	}

	// Other clients have their own bucket.
	if got := do("203.0.113.11:1234").Code; got != http.StatusOK {
		t.Fatalf("other client: got %d, want %d", got, http.StatusOK)
	}
}

type failingAllower struct{}

func (failingAllower) Allow(context.Context, string, int, time.Duration, string) (bool, time.Duration, error) {
	return false, 0, errors.New("backend down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := gee.New()
	r.GET("/t",
		RateLimit(failingAllower{}, "test", 1, time.Minute),
		func(ctx *gee.Context) { ctx.String(http.StatusOK, "ok") },
	)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}

func TestRateLimit_NilLimiter(t *testing.T) {
	r := gee.New()
	r.GET("/t",
		RateLimit(nil, "test", 1, time.Minute),
		func(ctx *gee.Context) { ctx.String(http.StatusOK, "ok") },
	)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, rec.Code)
		}
	}
}
