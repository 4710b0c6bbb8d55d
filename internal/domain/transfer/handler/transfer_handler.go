package handler

import (
	"net/http"
	"time"

	"event_ticketing/internal/domain/transfer/model"
	"event_ticketing/internal/domain/transfer/service"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/pkg/response"
	"event_ticketing/pkg/utils"

	"github.com/gin-gonic/gin"
)

type TransferHandler struct {
	service service.TransferService
}

func NewTransferHandler(service service.TransferService) *TransferHandler {
	return &TransferHandler{service: service}
}

type DirectTransferInput struct {
	TicketID string `json:"ticketId" binding:"required"`
	ToUserID string `json:"toUserId"`
	ToEmail  string `json:"toEmail" binding:"omitempty,email"`
	Notes    string `json:"notes" binding:"max=500"`
}

type AdminTransferInput struct {
	TicketID string `json:"ticketId" binding:"required"`
	ToUserID string `json:"toUserId" binding:"required"`
	Notes    string `json:"notes" binding:"max=500"`
}

// ListQuery 管理端查询参数，日期为 RFC3339
type ListQuery struct {
	utils.Pagination
	From   *time.Time         `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time         `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Type   model.TransferType `form:"type"`
	UserID string             `form:"userId"`
}

type StatsQuery struct {
	From *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

func (h *TransferHandler) DirectTransfer(c *gin.Context) {
	var input DirectTransferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	transfer, err := h.service.DirectTransfer(c.Request.Context(), service.DirectInput{
		TicketID:   input.TicketID,
		FromUserID: userID,
		ToUserID:   input.ToUserID,
		ToEmail:    input.ToEmail,
		Notes:      input.Notes,
		Meta:       middleware.ClientMeta(c),
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Created(c, transfer)
}

func (h *TransferHandler) PurchaseResale(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	transfer, err := h.service.PurchaseResale(c.Request.Context(), c.Param("ticketId"), userID, middleware.ClientMeta(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Created(c, transfer)
}

func (h *TransferHandler) AdminTransfer(c *gin.Context) {
	var input AdminTransferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	adminID, _ := middleware.CurrentUserID(c)
	transfer, err := h.service.AdminTransfer(c.Request.Context(), service.AdminInput{
		TicketID: input.TicketID,
		AdminID:  adminID,
		ToUserID: input.ToUserID,
		Notes:    input.Notes,
		Meta:     middleware.ClientMeta(c),
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Created(c, transfer)
}

func (h *TransferHandler) TicketHistory(c *gin.Context) {
	transfers, err := h.service.GetTicketTransferHistory(c.Request.Context(), c.Param("ticketId"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, transfers)
}

func (h *TransferHandler) MyHistory(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	transfers, err := h.service.GetUserTransferHistory(c.Request.Context(), userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, transfers)
}

func (h *TransferHandler) ListTransfers(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	page, err := h.service.GetAllTransfers(c.Request.Context(), model.Filter{
		From:   q.From,
		To:     q.To,
		Type:   q.Type,
		UserID: q.UserID,
	}, q.Pagination)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, page)
}

func (h *TransferHandler) Stats(c *gin.Context) {
	var q StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	stats, err := h.service.GetTransferStats(c.Request.Context(), q.From, q.To)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, stats)
}
