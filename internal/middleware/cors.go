package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS returns a middleware that sets CORS headers for cross-origin requests.
// AllowedOrigins can be "*" or a comma-separated list; an entry ending in "*" matches
// by prefix (e.g. "chrome-extension://*").
func CORS(allowedOrigins string) gin.HandlerFunc {
	exact, prefixes := parseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowOrigin := ""
		if (len(exact) == 0 && len(prefixes) == 0) || exact["*"] {
			allowOrigin = "*"
		} else if origin != "" && (exact[origin] || hasPrefix(origin, prefixes)) {
			allowOrigin = origin
		}
		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
			if allowOrigin != "*" {
				c.Header("Vary", "Origin")
			}
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent) // 204
			return
		}
		c.Next()
	}
}

func parseOrigins(s string) (map[string]bool, []string) {
	exact := make(map[string]bool)
	var prefixes []string
	for _, o := range strings.Split(strings.TrimSpace(s), ",") {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o != "*" && strings.HasSuffix(o, "*"):
			prefixes = append(prefixes, strings.TrimSuffix(o, "*"))
		default:
			exact[o] = true
		}
	}
	return exact, prefixes
}

func hasPrefix(origin string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}
