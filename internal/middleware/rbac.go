package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
	"github.com/noah-isme/gradesync-api/pkg/response"
)

// RequireRoles rejects requests whose token role is not in roles. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, permitted := allowed[claims.Role]; !permitted {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role not permitted to grade"))
			c.Abort()
			return
		}
		c.Next()
	}
}
