package middleware

import (
	"net/http"
	"strings"

	"RTChat/tools/security"

	"github.com/gin-gonic/gin"
)

// CtxUserID is the gin context key the auth middleware stores the verified
// subject under.
const CtxUserID = "user_id"

// BearerAuth verifies the Authorization bearer token on admin routes and
// stores the subject in the context.
func BearerAuth(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		userID, err := security.VerifyUser(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxUserID, userID)
		c.Next()
	}
}
