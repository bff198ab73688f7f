package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxAdminClaims = "cracklab_admin_claims"

// RequireAdmin returns a Gin middleware that enforces a valid admin Bearer
// token. On success it injects the *AdminClaims into the context.
func RequireAdmin(tokens *AdminTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":    false,
				"error": "admin Bearer token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":    false,
				"error": "invalid admin token",
			})
			return
		}

		c.Set(ctxAdminClaims, claims)
		c.Next()
	}
}

// AdminClaimsFromCtx retrieves the claims injected by RequireAdmin.
// Returns nil if the request was not authenticated.
func AdminClaimsFromCtx(c *gin.Context) *AdminClaims {
	v, _ := c.Get(ctxAdminClaims)
	claims, _ := v.(*AdminClaims)
	return claims
}
