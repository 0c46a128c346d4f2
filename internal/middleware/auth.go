// Package middleware contains Gin middleware functions.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyAPIKey is where the authenticated key is stored on the gin.Context.
const ContextKeyAPIKey = "api_key"

// requestKey reads the key from the X-API-Key header, falling back to the
// api_key query param for EventSource clients that cannot set headers.
func requestKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// APIKeyAuth rejects requests without a known API key. Admin keys are
// accepted too.
func APIKeyAuth(apiKeys, adminKeys []string) gin.HandlerFunc {
	valid := keySet(append(append([]string{}, apiKeys...), adminKeys...))

	return func(c *gin.Context) {
		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}
		if _, ok := valid[key]; !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

// AdminKeyAuth guards admin endpoints. A regular API key gets 403, an
// unknown one 401.
func AdminKeyAuth(apiKeys, adminKeys []string) gin.HandlerFunc {
	admins := keySet(adminKeys)
	users := keySet(apiKeys)

	return func(c *gin.Context) {
		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing admin API key"})
			return
		}
		if _, ok := admins[key]; !ok {
			status := http.StatusUnauthorized
			if _, isUser := users[key]; isUser {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "admin API key required"})
			return
		}

		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}
