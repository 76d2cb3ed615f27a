package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bappy/identity-service/internal/service"
)

// AuthMiddleware validates the bearer token and adds the subject to the
// request context
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respond(c, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header is required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respond(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			respond(c, http.StatusUnauthorized, "INVALID_TOKEN", tokenRejectedMessage)
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("roles", claims.Roles)

		c.Next()
	}
}
