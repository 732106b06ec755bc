package middleware

import (
	"strings"

	"strathub/internal/service"
	"strathub/internal/util"

	"github.com/gin-gonic/gin"
)

const accessTokenCookie = "access_token"

// AuthMiddleware creates authentication middleware. The access token is
// read from the session cookie first; the Authorization header is the
// fallback for non-browser clients.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			util.AbortWithCustomError(c, 401, util.ErrCodeUnauthorized, "Authentication required")
			return
		}

		user, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			util.AbortWithError(c, err)
			return
		}

		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Set("user", user)

		c.Next()
	}
}

// extractToken pulls the access token from cookie or bearer header. The
// cookie deliberately wins: it is the browser session transport, and a
// stale Authorization header must not shadow a fresh cookie.
func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(accessTokenCookie); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
