package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"logibill/internal/core/apperror"
	appctx "logibill/internal/core/context"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.ClientContext, error)
}

// Auth validates the bearer token and puts the client into the request context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		client, err := validator.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Request = c.Request.WithContext(appctx.WithClient(c.Request.Context(), client))
		c.Set("client_id", client.ClientID)

		c.Next()
	}
}

// RequireScope aborts with 403 unless the client holds scope.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if appctx.GetClient(ctx) == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if !appctx.HasScope(ctx, scope) {
			_ = c.Error(
				apperror.NewForbidden("insufficient scope").
					WithDetail("required_scope", scope),
			)
			c.Abort()
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
