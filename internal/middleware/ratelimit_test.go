package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestLimiter(max int, window time.Duration) *RateLimiter {
	rl := NewRateLimiter(RateLimitConfig{
		MaxRequests:     max,
		Window:          window,
		CleanupInterval: time.Hour,
	})
	return rl
}

// ---------------------------------------------------------------------------
// Allow
// ---------------------------------------------------------------------------

func TestRateLimiter_AllowsWithinBudget(t *testing.T) {
	rl := newTestLimiter(3, time.Minute)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("ip:1.2.3.4"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := rl.Allow("ip:1.2.3.4"); ok {
		t.Error("request over budget should be denied")
	}
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := newTestLimiter(1, time.Minute)
	defer rl.Stop()

	if ok, _ := rl.Allow("ip:1.1.1.1"); !ok {
		t.Fatal("first client should be allowed")
	}
	if ok, _ := rl.Allow("ip:2.2.2.2"); !ok {
		t.Error("second client should have its own budget")
	}
	if ok, _ := rl.Allow("ip:1.1.1.1"); ok {
		t.Error("first client should now be over budget")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := newTestLimiter(1, 30*time.Millisecond)
	defer rl.Stop()

	if ok, _ := rl.Allow("ip:1.2.3.4"); !ok {
		t.Fatal("first request should be allowed")
	}
	if ok, _ := rl.Allow("ip:1.2.3.4"); ok {
		t.Fatal("second request should be denied")
	}

	time.Sleep(40 * time.Millisecond)

	if ok, _ := rl.Allow("ip:1.2.3.4"); !ok {
		t.Error("request after window reset should be allowed")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	rl := newTestLimiter(5, time.Minute)
	defer rl.Stop()

	if got := rl.Remaining("ip:1.2.3.4"); got != 5 {
		t.Errorf("Remaining before any request = %d, want 5", got)
	}
	rl.Allow("ip:1.2.3.4")
	rl.Allow("ip:1.2.3.4")
	if got := rl.Remaining("ip:1.2.3.4"); got != 3 {
		t.Errorf("Remaining after 2 requests = %d, want 3", got)
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	rl := newTestLimiter(2, time.Minute)
	defer rl.Stop()

	router := gin.New()
	router.Use(RateLimitMiddleware(rl))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

func TestRateLimitMiddleware_SetsHeaders(t *testing.T) {
	rl := newTestLimiter(10, time.Minute)
	defer rl.Stop()

	router := gin.New()
	router.Use(RateLimitMiddleware(rl))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "9.9.9.8:1234"
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Errorf("X-RateLimit-Limit = %q, want 10", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "9" {
		t.Errorf("X-RateLimit-Remaining = %q, want 9", got)
	}
}
