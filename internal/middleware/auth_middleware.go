package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskflow/internal/auth"
	"taskflow/internal/model"
)

const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// JWTAuthMiddleware authenticates the bearer token and stores the employee id and role in the context.
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		actor, err := auth.ParseToken(secret, parts[1])
		if errors.Is(err, auth.ErrInvalidClaims) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid employee ID in token"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(UserIDKey, actor.ID)
		c.Set(RoleKey, actor.Role)
		c.Next()
	}
}

// ActorFrom returns the authenticated actor stored by JWTAuthMiddleware.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	id, ok := c.Get(UserIDKey)
	if !ok {
		return model.Actor{}, false
	}
	employeeID, ok := id.(int64)
	if !ok {
		return model.Actor{}, false
	}
	role, _ := c.Get(RoleKey)
	r, _ := role.(model.Role)
	return model.Actor{ID: employeeID, Role: r}, true
}
