package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yaroslav/modekeeper/pkg/token"
)

// HeaderOperatorToken is the header carrying the plaintext operator token.
const HeaderOperatorToken = "X-Modekeeper-Token"

// respondAuthError sends an authentication error response.
//
// This uses a generic error message to prevent information disclosure
// that could aid attackers in token enumeration.
func respondAuthError(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": "Authentication failed",
	})
	c.Abort()
}

// RequireOperatorToken guards administrative endpoints.
//
// Requests are rejected when no operator token hash is configured, so a
// node without OPERATOR_TOKEN_HASH exposes a read-only API.
func RequireOperatorToken(verifier *token.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifier.Check(c.GetHeader(HeaderOperatorToken)) {
			GetLogger(c).Warn("operator authentication failed")
			respondAuthError(c)
			return
		}
		c.Next()
	}
}
