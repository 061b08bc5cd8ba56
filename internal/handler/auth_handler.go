package handler

import (
	"errors"
	"log"

	"credit_ledger/internal/middleware"
	"credit_ledger/internal/model"
	"credit_ledger/internal/repository"
	"credit_ledger/internal/response"
	"credit_ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles registration, login, logout and session checks
type AuthHandler struct {
	service service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(s service.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			response.BadRequest(c, err.Error())
		case errors.Is(err, repository.ErrDuplicateUsername), errors.Is(err, repository.ErrDuplicateEmail):
			// Duplicates answer 400 here rather than 409.
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrStoreUnavailable):
			response.Unavailable(c, "service temporarily unavailable")
		default:
			log.Printf("error during registration: %v", err)
			response.Internal(c)
		}
		return
	}

	response.Created(c, "user registered successfully", gin.H{"user": user.Public()})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	sess, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Unauthorized(c, service.ErrInvalidCredentials.Error())
		case errors.Is(err, service.ErrStoreUnavailable):
			response.Unavailable(c, "service temporarily unavailable")
		default:
			log.Printf("error during login: %v", err)
			response.Internal(c)
		}
		return
	}

	response.OK(c, "login successful", gin.H{
		"token": sess.Token,
		"user": gin.H{
			"username": sess.Username,
			"role":     sess.Role,
		},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := middleware.GetToken(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	h.service.Logout(token)
	response.OK(c, "logged out", nil)
}

// CurrentUser answers the session check behind GET /api/user
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	response.OK(c, "", gin.H{
		"user": gin.H{
			"username": sess.Username,
			"role":     sess.Role,
			"provider": sess.Provider,
		},
	})
}

// RegisterAuthRoutes registers auth routes
func (h *AuthHandler) RegisterAuthRoutes(r *gin.Engine, authMW, storeMW gin.HandlerFunc) {
	r.POST("/api/register", storeMW, h.Register)
	r.POST("/api/login", h.Login) // seed admin must work with the store down
	r.POST("/api/logout", authMW, h.Logout)
	r.GET("/api/user", authMW, h.CurrentUser)
}
