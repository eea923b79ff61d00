package middleware

import (
	"net/http"
	"strings"

	"go-hospitality/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by AuthMiddleware
const (
	UserIDKey   = "userID"
	RoleKey     = "role"
	TenantIDKey = "tenantID"
)

// AuthMiddleware checks if the user has a valid JWT token
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Format: "Bearer <token>"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			deny(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			deny(c, http.StatusUnauthorized, "Authorization header must start with Bearer")
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			deny(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		// every secure handler scopes its queries to this tenant
		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Set(TenantIDKey, claims.TenantID)

		c.Next()
	}
}

// RequireRole is a secondary guard that checks for specific permissions
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(RoleKey)
		for _, r := range allowed {
			if role == r {
				c.Next()
				return
			}
		}
		deny(c, http.StatusForbidden, "You do not have permission to access this resource")
	}
}

// TenantID returns the tenant of the authenticated caller.
func TenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

func deny(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
