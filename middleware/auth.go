package middleware

import (
	"net/http"

	"companion-service/models"

	"github.com/gin-gonic/gin"
)

const UserKey = "userID"

// AuthMiddleware extracts the actor identity injected by the upstream
// gateway. The system principal is reserved for internal paths and is
// rejected here so a client can never impersonate it.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" || userID == models.SystemActor {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(UserKey, userID)
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	if val, exists := c.Get(UserKey); exists {
		return val.(string)
	}
	return ""
}
