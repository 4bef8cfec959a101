package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
	"github.com/outreachlab/telegram-mailer-backend/internal/services/auth"
)

type BearerTokenMiddleware struct {
	authService *auth.AuthService
}

func NewBearerTokenMiddleware(authService *auth.AuthService) *BearerTokenMiddleware {
	return &BearerTokenMiddleware{authService: authService}
}

// BearerTokenAuthMiddleware validates the JWT token and sets user info in context
func (m *BearerTokenMiddleware) BearerTokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		tokenInfo, err := m.authService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		user, err := m.authService.GetUser(tokenInfo.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("is_admin", user.IsAdmin)

		c.Next()
	}
}

// AdminOnly rejects requests from non-admin operators. It must run after
// BearerTokenAuthMiddleware.
func (m *BearerTokenMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, ok := c.Get("is_admin"); !ok || isAdmin != true {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser extracts the authenticated user set by the auth middleware
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
