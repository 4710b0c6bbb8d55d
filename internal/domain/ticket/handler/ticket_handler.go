package handler

import (
	"net/http"

	"event_ticketing/internal/domain/ticket/model"
	"event_ticketing/internal/domain/ticket/service"
	usermodel "event_ticketing/internal/domain/user/model"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/pkg/apperror"
	"event_ticketing/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type TicketHandler struct {
	service service.TicketService
}

func NewTicketHandler(service service.TicketService) *TicketHandler {
	return &TicketHandler{service: service}
}

type PurchaseInput struct {
	EventID    string           `json:"eventId" binding:"required"`
	TicketType model.TicketType `json:"ticketType"`
}

type SaleInput struct {
	Price *decimal.Decimal `json:"price"`
}

func (h *TicketHandler) Purchase(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	var input PurchaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	ticket, err := h.service.Purchase(c.Request.Context(), userID, input.EventID, input.TicketType)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Created(c, ticket)
}

func (h *TicketHandler) ListMine(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	tickets, err := h.service.ListUserTickets(c.Request.Context(), userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, tickets)
}

func (h *TicketHandler) ListResale(c *gin.Context) {
	tickets, err := h.service.ListResale(c.Request.Context(), c.Query("event"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, tickets)
}

// GetTicket 仅持有人或管理员可查看
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ticket, err := h.service.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	role, _ := middleware.CurrentRole(c)
	if !ticket.IsOwnedBy(userID) && role != usermodel.RoleAdmin {
		response.AppError(c, apperror.NotAuthorized("No eres el propietario de este boleto"))
		return
	}
	response.Success(c, ticket)
}

func (h *TicketHandler) PutForSale(c *gin.Context) {
	var input SaleInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
	}

	userID, _ := middleware.CurrentUserID(c)
	ticket, err := h.service.PutForSale(c.Request.Context(), c.Param("id"), userID, input.Price)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, ticket)
}

func (h *TicketHandler) RemoveFromSale(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	ticket, err := h.service.RemoveFromSale(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, ticket)
}
