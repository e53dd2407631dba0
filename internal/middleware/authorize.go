package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bybench/internal/models"
)

func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			Fail(c, http.StatusUnauthorized, "unauthenticated", "Authentication required")
			return
		}
		if _, ok := roleSet[user.Role]; !ok {
			Fail(c, http.StatusForbidden, "forbidden", "You do not have access to this resource")
			return
		}
		c.Next()
	}
}
