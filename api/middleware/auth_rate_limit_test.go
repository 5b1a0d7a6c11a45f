package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func loginRequest(email, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"`+email+`","password":"pw"}`))
	req.Header.Set("X-Forwarded-For", ip)
	return req
}

func TestAuthRateLimitPerEmail(t *testing.T) {
	store := newFakeCounter()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 100, 3)
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("shopper@example.com", "10.0.0.1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("shopper@example.com", "10.0.0.1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	// A different account from the same IP is still allowed.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("other@example.com", "10.0.0.1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("different email: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthRateLimitPerIP(t *testing.T) {
	store := newFakeCounter()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 0)
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("a@example.com", "10.0.0.1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i+1, rec.Code)
		}
	}

	// Email rotation does not help once the IP is over its budget.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("b@example.com", "10.0.0.1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("b@example.com", "10.0.0.2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("different ip: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthRateLimitEmailNormalization(t *testing.T) {
	store := newFakeCounter()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 100, 2)
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	variants := []string{"Shopper@Example.com", " shopper@example.com ", "SHOPPER@EXAMPLE.COM"}
	codes := make([]int, 0, len(variants))
	for _, email := range variants {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(email, "10.0.0.1"))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("first two attempts should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("case variants must count against one bucket, got %v", codes)
	}
}

func TestAuthRateLimitDisabledPolicy(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", 0, 5, 5)
	handler := AuthRateLimit(policy, newFakeCounter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("shopper@example.com", "10.0.0.1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled policy must never block, attempt %d got %d", i+1, rec.Code)
		}
	}
}
