package handler

import (
	"credit_ledger/internal/middleware"
	"credit_ledger/internal/response"
	"credit_ledger/internal/session"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes operational counters to admins
type AdminHandler struct {
	sessions *session.MemoryRegistry
	health   middleware.StoreHealth
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(sessions *session.MemoryRegistry, health middleware.StoreHealth) *AdminHandler {
	return &AdminHandler{sessions: sessions, health: health}
}

// Stats sweeps expired sessions and reports live counters
func (h *AdminHandler) Stats(c *gin.Context) {
	swept := h.sessions.Sweep()
	response.OK(c, "", gin.H{
		"active_sessions": h.sessions.Len(),
		"sessions_swept":  swept,
		"store_healthy":   h.health.Healthy(),
	})
}

// RegisterAdminRoutes registers admin-only routes
func (h *AdminHandler) RegisterAdminRoutes(r *gin.Engine, authMW gin.HandlerFunc) {
	r.GET("/api/admin/stats", authMW, middleware.AdminMiddleware(), h.Stats)
}
