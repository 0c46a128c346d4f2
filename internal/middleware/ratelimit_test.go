package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func limitedRouter(rps float64, burst int) *gin.Engine {
	router := gin.New()
	router.Use(APIKeyAuth([]string{"key-a", "key-b"}, nil))
	router.Use(RateLimit(rps, burst))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func requestWithKey(key string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-API-Key", key)
	return req
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	router := limitedRouter(0.001, 2)

	for i := 0; i < 2; i++ {
		if w := serve(router, requestWithKey("key-a")); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	w := serve(router, requestWithKey("key-a"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_BucketsArePerKey(t *testing.T) {
	router := limitedRouter(0.001, 1)

	serve(router, requestWithKey("key-a"))
	if w := serve(router, requestWithKey("key-a")); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected key-a limited, got %d", w.Code)
	}
	if w := serve(router, requestWithKey("key-b")); w.Code != http.StatusOK {
		t.Errorf("expected key-b unaffected, got %d", w.Code)
	}
}

func TestRateLimit_FallsBackToClientIP(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(0.001, 1))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRequest(http.MethodGet, "/test", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	second := httptest.NewRequest(http.MethodGet, "/test", nil)
	second.RemoteAddr = "10.0.0.1:5678"

	serve(router, first)
	if w := serve(router, second); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected same IP to share a bucket, got %d", w.Code)
	}
}

func TestRateLimit_DisabledWhenNonPositive(t *testing.T) {
	router := limitedRouter(0, 0)

	for i := 0; i < 10; i++ {
		if w := serve(router, requestWithKey("key-a")); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}
