package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(5, time.Second)

	for i := 0; i < 5; i++ {
		if !rl.allow("192.168.1.1") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	if rl.allow("192.168.1.1") {
		t.Error("6th request should be denied")
	}

	// Different IP tracks its own bucket
	if !rl.allow("192.168.1.2") {
		t.Error("request from different IP should be allowed")
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, 100*time.Millisecond)

	if !rl.allow("192.168.1.1") || !rl.allow("192.168.1.1") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.allow("192.168.1.1") {
		t.Error("third request should be denied")
	}

	time.Sleep(110 * time.Millisecond)

	if !rl.allow("192.168.1.1") {
		t.Error("request after window should be allowed")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)

	handler := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"remote addr", "10.0.0.1:5123", "", "", "10.0.0.1"},
		{"forwarded for", "10.0.0.1:5123", "203.0.113.7, 10.0.0.1", "", "203.0.113.7"},
		{"real ip", "10.0.0.1:5123", "", "203.0.113.9", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := getClientIP(r); got != tt.want {
				t.Fatalf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
