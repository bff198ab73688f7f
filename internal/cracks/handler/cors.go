package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowHeaders = "Content-Type, Authorization"
	corsAllowMethods = "OPTIONS, GET, POST"
)

// CORS returns a Gin middleware that sets CORS headers on every response
// and answers every OPTIONS request with 200 {ok:true}.
//
// The allowed origin is the request Origin when it is on the allow-list,
// otherwise the first allow-list entry, otherwise "*". Credentials are
// allowed for any concrete origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return func(c *gin.Context) {
		origin := allowOrigin(c.GetHeader("Origin"), origins)
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		if origin == "*" {
			h.Set("Access-Control-Allow-Credentials", "false")
		} else {
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		c.Next()
	}
}

func allowOrigin(origin string, allowed []string) string {
	if len(allowed) == 0 {
		return "*"
	}
	for _, item := range allowed {
		if origin != "" && item == origin {
			return origin
		}
	}
	return allowed[0]
}

// ParseOrigins splits a comma-separated origin list, dropping empty items.
func ParseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
