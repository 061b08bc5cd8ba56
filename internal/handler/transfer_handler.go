package handler

import (
	"errors"
	"log"
	"strconv"

	"credit_ledger/internal/middleware"
	"credit_ledger/internal/model"
	"credit_ledger/internal/response"
	"credit_ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// TransferHandler handles the credit transfer ledger and the recipient picker
type TransferHandler struct {
	service service.TransferService
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(s service.TransferService) *TransferHandler {
	return &TransferHandler{service: s}
}

func (h *TransferHandler) Transfer(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req model.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	transfer, err := h.service.Transfer(c.Request.Context(), sess.UserID, sess.Username, req.To, req.Amount, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecipientNotFound):
			response.NotFound(c, service.ErrRecipientNotFound.Error())
		case errors.Is(err, service.ErrSelfTransfer):
			response.BadRequest(c, service.ErrSelfTransfer.Error())
		case errors.Is(err, service.ErrValidation):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrStoreUnavailable):
			response.Unavailable(c, "service temporarily unavailable")
		default:
			log.Printf("error creating transfer: %v", err)
			response.Internal(c)
		}
		return
	}

	response.Created(c, "transfer recorded", gin.H{"transaction": transfer})
}

func (h *TransferHandler) History(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	limit := 0
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = parsed
	}

	transfers, err := h.service.History(c.Request.Context(), sess.UserID, limit)
	if err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			response.Unavailable(c, "service temporarily unavailable")
			return
		}
		log.Printf("error loading transfer history: %v", err)
		response.Internal(c)
		return
	}
	if transfers == nil {
		transfers = []model.Transfer{}
	}

	response.OK(c, "", gin.H{"transactions": transfers})
}

// ListUsers returns every other user for the transfer-recipient picker
func (h *TransferHandler) ListUsers(c *gin.Context) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	users, err := h.service.ListRecipients(c.Request.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			response.Unavailable(c, "service temporarily unavailable")
			return
		}
		log.Printf("error listing users: %v", err)
		response.Internal(c)
		return
	}

	response.OK(c, "", gin.H{"users": users})
}

// RegisterTransferRoutes registers ledger routes
func (h *TransferHandler) RegisterTransferRoutes(r *gin.Engine, authMW, storeMW gin.HandlerFunc) {
	r.GET("/api/users", authMW, storeMW, h.ListUsers)
	r.POST("/api/transactions/transfer", authMW, storeMW, h.Transfer)
	r.GET("/api/transactions", authMW, storeMW, h.History)
}
