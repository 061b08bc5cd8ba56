package middleware

import (
	"net/http"
	"strings"

	"credit_ledger/internal/response"
	"credit_ledger/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	AuthSessionKey = "authSession"
	AuthTokenKey   = "authToken"
)

// SessionAuth resolves the bearer token against the session registry. The
// 401 is identical whether the token is missing, malformed, unknown or
// expired.
func SessionAuth(registry session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		token := parts[1]
		sess, ok := registry.Resolve(token)
		if !ok {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		c.Set(AuthSessionKey, sess)
		c.Set(AuthTokenKey, token)

		c.Next()
	}
}

// GetSession returns the authenticated session placed by SessionAuth
func GetSession(c *gin.Context) (*session.Session, bool) {
	val, exists := c.Get(AuthSessionKey)
	if !exists {
		return nil, false
	}
	sess, ok := val.(*session.Session)
	return sess, ok
}

// GetToken returns the raw bearer token placed by SessionAuth
func GetToken(c *gin.Context) (string, bool) {
	val, exists := c.Get(AuthTokenKey)
	if !exists {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}
