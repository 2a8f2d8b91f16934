package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/custodyledger/internal/infrastructure/metrics"
)

func TestRateLimiter_LimitsPerIP(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	rl := NewRateLimiter(1, 1).WithMetrics(m)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("1.2.3.4:1000"); code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send("1.2.3.4:2000"); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request from same host to be throttled, got %d", code)
	}
	if code := send("5.6.7.8:1000"); code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", code)
	}

	if got := testutil.ToFloat64(m.RateLimitHits.WithLabelValues("1.2.3.4")); got != 1 {
		t.Fatalf("expected one rate limit hit, got %v", got)
	}
}

func TestGetIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, remote: "1.1.1.1:1", want: "10.0.0.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "10.0.0.3"}, remote: "1.1.1.1:1", want: "10.0.0.3"},
		{name: "remote addr", remote: "1.1.1.1:443", want: "1.1.1.1"},
		{name: "remote without port", remote: "1.1.1.1", want: "1.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getIP(req); got != tt.want {
				t.Fatalf("getIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiter_CleanupDropsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.getLimiter("idle")
	now = now.Add(time.Hour)
	rl.getLimiter("active")

	rl.CleanupLimiters(30 * time.Minute)

	if _, ok := rl.limiters["idle"]; ok {
		t.Fatal("expected idle limiter to be removed")
	}
	if _, ok := rl.limiters["active"]; !ok {
		t.Fatal("expected active limiter to be kept")
	}
}
