package handler

import (
	"net/http"

	"github.com/Tisha7353/Resono/internal/auth"

	"github.com/gin-gonic/gin"
)

// ContextUserID is the gin context key holding the authenticated identity.
const ContextUserID = "userId"

// AuthRequired rejects requests without a valid bearer token and exposes
// the verified identity to downstream handlers.
func AuthRequired(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}
