package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docvault/docvault/internal/models"
)

// ActorKey is the gin context key holding the authenticated *models.User.
const ActorKey = "actor"

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on. Local JWT and
// OIDC verifiers both satisfy it.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// UserLookup resolves the token subject to the current user record.
type UserLookup func(ctx context.Context, id string) (*models.User, error)

// Blacklist reports whether an access token has been revoked. May be nil.
type Blacklist func(ctx context.Context, token string) (bool, error)

// AuthMiddleware verifies Bearer tokens, resolves the subject to a user and
// stores it under ActorKey. Deactivated users are rejected even with a valid
// token.
func AuthMiddleware(ver Verifier, lookup UserLookup, revoked Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		// Expect 'Bearer <token>'
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		if revoked != nil {
			if rv, err := revoked(c.Request.Context(), token); err == nil && rv {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var claims struct {
			Sub string `json:"sub"`
		}
		if err := verified.Claims(&claims); err != nil || claims.Sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}

		actor, err := lookup(c.Request.Context(), claims.Sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		if !actor.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account deactivated"})
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// Actor returns the authenticated user set by AuthMiddleware, or nil.
func Actor(c *gin.Context) *models.User {
	v, ok := c.Get(ActorKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
