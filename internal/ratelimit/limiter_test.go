package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowSlidingWindow(t *testing.T) {
	l := New(nil)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	b := Bucket{MaxRequests: 2, Window: time.Minute}
	if !l.Allow("k", b) || !l.Allow("k", b) {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("k", b) {
		t.Fatal("third request inside window should be rejected")
	}
	if !l.Allow("other", b) {
		t.Fatal("keys are independent")
	}

	clock = clock.Add(61 * time.Second)
	if !l.Allow("k", b) {
		t.Fatal("window should have slid")
	}
}

func TestCheckWritesTooManyRequests(t *testing.T) {
	l := New(map[string]Bucket{"predict": {MaxRequests: 1, Window: time.Minute}})

	req := httptest.NewRequest(http.MethodPost, "/v1/predict", nil)
	req.RemoteAddr = "10.0.0.1"

	if l.Check(httptest.NewRecorder(), req, "predict") {
		t.Fatal("first request should pass")
	}
	rec := httptest.NewRecorder()
	if !l.Check(rec, req, "predict") {
		t.Fatal("second request should be limited")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestSweep(t *testing.T) {
	l := New(map[string]Bucket{"predict": {MaxRequests: 5, Window: time.Minute}})
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	l.Allow("old", Bucket{MaxRequests: 5, Window: time.Minute})
	clock = clock.Add(2 * time.Minute)
	l.Allow("fresh", Bucket{MaxRequests: 5, Window: time.Minute})

	if n := l.Sweep(); n != 1 {
		t.Fatalf("expected 1 key removed, got %d", n)
	}
	if _, ok := l.hits["fresh"]; !ok {
		t.Fatal("fresh key should survive")
	}
}

func TestPermitKeysOnIPNotPort(t *testing.T) {
	l := New(map[string]Bucket{"predict": {MaxRequests: 2, Window: time.Minute}})

	allowed := 0
	for port := 40000; port < 40010; port++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = fmt.Sprintf("203.0.113.7:%d", port)
		if ok, _ := l.Permit(req, "predict"); ok {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("expected 2 of 10 requests from one IP allowed, got %d", allowed)
	}

	other := httptest.NewRequest(http.MethodPost, "/", nil)
	other.RemoteAddr = "198.51.100.9:40000"
	if ok, _ := l.Permit(other, "predict"); !ok {
		t.Fatal("a different IP has its own bucket")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"203.0.113.7:51234", "203.0.113.7"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
		{"2001:db8::1", "2001:db8::1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := ClientIP(req); got != tt.want {
			t.Fatalf("ClientIP(%q): expected %q, got %q", tt.remote, tt.want, got)
		}
	}
}
