package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/response"
)

// SelfParam is the path parameter compared against the caller for self access.
const SelfParam = "id"

// RequireRoles admits callers holding one of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return authorize(roleSet(roles), false)
}

// RequireRolesOrSelf also admits a caller whose teacher or user id equals the
// :id path parameter.
func RequireRolesOrSelf(roles ...models.UserRole) gin.HandlerFunc {
	return authorize(roleSet(roles), true)
}

func authorize(allowed map[models.UserRole]struct{}, allowSelf bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && isSelf(claims, c.Param(SelfParam)) {
			c.Next()
			return
		}
		response.Abort(c, appErrors.ErrForbidden)
	}
}

func isSelf(claims *models.JWTClaims, target string) bool {
	return target != "" && (target == claims.ActorTeacherID() || target == claims.UserID)
}

func roleSet(roles []models.UserRole) map[models.UserRole]struct{} {
	set := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}
