package middleware

import (
	"net/http"

	"credit_ledger/internal/model"
	"credit_ledger/internal/response"

	"github.com/gin-gonic/gin"
)

// RoleMiddleware creates a middleware to check for specific user roles
func RoleMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := GetSession(c)
		if !ok {
			response.AbortError(c, http.StatusForbidden, "role not found, ensure session middleware runs first")
			return
		}

		for _, allowedRole := range allowedRoles {
			if sess.Role == allowedRole {
				c.Next()
				return
			}
		}

		response.AbortError(c, http.StatusForbidden, "you do not have permission to access this resource")
	}
}

// AdminMiddleware checks if the user is an admin
func AdminMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.RoleAdmin)
}
