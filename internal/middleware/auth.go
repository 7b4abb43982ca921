package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/pkg/jwt"
	"github.com/mx-space/folio/internal/pkg/response"
)

const ContextKeyAdmin = "admin_claims"

// TokenParser validates admin tokens.
type TokenParser interface {
	Parse(token string) (*jwt.Claims, error)
}

// AdminAuth rejects requests without a valid admin token.
func AdminAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.Parse(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyAdmin, claims)
		c.Next()
	}
}

// OptionalAdmin marks the request as admin when a valid token is present,
// but never blocks it.
func OptionalAdmin(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if claims, err := tokens.Parse(token); err == nil {
				c.Set(ContextKeyAdmin, claims)
			}
		}
		c.Next()
	}
}

// IsAdmin reports whether an earlier middleware authenticated the admin.
func IsAdmin(c *gin.Context) bool {
	_, ok := c.Get(ContextKeyAdmin)
	return ok
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
