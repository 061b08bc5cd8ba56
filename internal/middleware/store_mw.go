package middleware

import (
	"net/http"

	"credit_ledger/internal/response"

	"github.com/gin-gonic/gin"
)

// StoreHealth reports whether the backing store is currently reachable.
type StoreHealth interface {
	Healthy() bool
}

// RequireStore fails write-heavy routes fast while the store is down
// instead of letting requests queue against a dead connection.
func RequireStore(health StoreHealth) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !health.Healthy() {
			response.AbortError(c, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		c.Next()
	}
}
