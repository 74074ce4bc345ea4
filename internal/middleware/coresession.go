package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
)

// CoreTokenSource resolves the caller's upstream platform token.
type CoreTokenSource interface {
	CoreToken(ctx context.Context, userID int64) string
}

// CoreSession attaches the caller's core platform token to the request
// context so downstream coreapi calls act on the user's behalf. Requests
// without a stored token fall through to the gateway service token.
func CoreSession(source CoreTokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID != 0 {
			if token := source.CoreToken(c.Request.Context(), userID); token != "" {
				ctx := coreapi.WithUserToken(c.Request.Context(), token)
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}
