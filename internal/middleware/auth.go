package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/response"
)

// AuthConfig is the authentication middleware configuration.
type AuthConfig struct {
	JWTManager *jwt.Manager
	Roles      []string // allowed roles, empty means any authenticated user
}

// Context keys.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyRole      = "role"
	ContextKeyStationID = "station_id"
	ContextKeyClaims    = "claims"
)

// Auth validates the bearer token and checks the caller role.
func Auth(config *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "login required")
			c.Abort()
			return
		}

		claims, err := config.JWTManager.ParseToken(token)
		if err != nil {
			if err == jwt.ErrTokenExpired {
				response.Unauthorized(c, "session expired, please sign in again")
			} else {
				response.Unauthorized(c, "invalid token")
			}
			c.Abort()
			return
		}

		if len(config.Roles) > 0 && !roleAllowed(claims.Role, config.Roles) {
			response.Forbidden(c, "access denied")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyStationID, claims.StationID)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// OptionalAuth parses the token when present but never rejects.
func OptionalAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token != "" {
			claims, err := jwtManager.ParseToken(token)
			if err == nil {
				c.Set(ContextKeyUserID, claims.UserID)
				c.Set(ContextKeyRole, claims.Role)
				c.Set(ContextKeyStationID, claims.StationID)
				c.Set(ContextKeyClaims, claims)
			}
		}
		c.Next()
	}
}

// DriverAuth allows drivers only.
func DriverAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return Auth(&AuthConfig{JWTManager: jwtManager, Roles: []string{jwt.RoleDriver}})
}

// StaffAuth allows station staff and admins.
func StaffAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return Auth(&AuthConfig{JWTManager: jwtManager, Roles: []string{jwt.RoleStaff, jwt.RoleAdmin}})
}

// AdminAuth allows admins only.
func AdminAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return Auth(&AuthConfig{JWTManager: jwtManager, Roles: []string{jwt.RoleAdmin}})
}

// AnyAuth allows any authenticated user.
func AnyAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return Auth(&AuthConfig{JWTManager: jwtManager})
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// extractToken reads the bearer token from the Authorization header, falling
// back to the token query parameter for QR and download links.
func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}

// GetUserID returns the authenticated user id, 0 when unauthenticated.
func GetUserID(c *gin.Context) int64 {
	if v, exists := c.Get(ContextKeyUserID); exists {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// GetRole returns the authenticated user role.
func GetRole(c *gin.Context) string {
	if v, exists := c.Get(ContextKeyRole); exists {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

// GetStationID returns the staff home station id, empty for drivers.
func GetStationID(c *gin.Context) string {
	if v, exists := c.Get(ContextKeyStationID); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetClaims returns the full token claims.
func GetClaims(c *gin.Context) *jwt.Claims {
	if v, exists := c.Get(ContextKeyClaims); exists {
		if claims, ok := v.(*jwt.Claims); ok {
			return claims
		}
	}
	return nil
}
