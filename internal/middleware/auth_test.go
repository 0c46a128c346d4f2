package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	key, _ := c.Get(ContextKeyAPIKey)
	c.String(http.StatusOK, key.(string))
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth([]string{"user-key"}, []string{"admin-key"}))
	router.GET("/test", okHandler)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"header", "user-key", "", http.StatusOK},
		{"query param for event sources", "", "user-key", http.StatusOK},
		{"admin key accepted", "admin-key", "", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"unknown", "nope", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/test"
			if tt.query != "" {
				url += "?api_key=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}

			w := serve(router, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAPIKeyAuth_StoresKeyForRateLimiter(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth([]string{"user-key"}, nil))
	router.GET("/test", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-API-Key", "user-key")
	w := serve(router, req)

	if w.Body.String() != "user-key" {
		t.Errorf("expected key in context, got %q", w.Body.String())
	}
}

func TestAdminKeyAuth(t *testing.T) {
	router := gin.New()
	router.Use(AdminKeyAuth([]string{"user-key"}, []string{"admin-key"}))
	router.GET("/admin", okHandler)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"admin", "admin-key", http.StatusOK},
		{"regular key is forbidden", "user-key", http.StatusForbidden},
		{"unknown key", "nope", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			if w := serve(router, req); w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
