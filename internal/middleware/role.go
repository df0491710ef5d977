package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-proctor/backend/internal/auth"
	"github.com/aura-proctor/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "missing user context")
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}

// RequireSession rejects tokens scoped to a session other than the :id route param.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.Abort(c, http.StatusBadRequest, "invalid session id")
			return
		}
		v, ok := c.Get(ContextClaims)
		claims, _ := v.(*auth.Claims)
		if !ok || claims == nil {
			response.Abort(c, http.StatusUnauthorized, "missing user context")
			return
		}
		if !claims.CanObserve(sessionID) {
			response.Abort(c, http.StatusForbidden, "no access to this session")
			return
		}
		c.Next()
	}
}
