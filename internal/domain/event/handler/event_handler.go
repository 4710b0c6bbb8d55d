package handler

import (
	"net/http"
	"time"

	"event_ticketing/internal/domain/event/service"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/pkg/response"
	"event_ticketing/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type EventHandler struct {
	service service.EventService
}

func NewEventHandler(service service.EventService) *EventHandler {
	return &EventHandler{service: service}
}

type CreateEventInput struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date" binding:"required"`
	Location    string          `json:"location"`
	MaxCapacity int             `json:"maxCapacity" binding:"required,min=1"`
	Price       decimal.Decimal `json:"price"`
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	var input CreateEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	organizerID, _ := middleware.CurrentUserID(c)
	event, err := h.service.CreateEvent(c.Request.Context(), service.CreateEventInput{
		Name:        input.Name,
		Description: input.Description,
		Date:        input.Date,
		Location:    input.Location,
		MaxCapacity: input.MaxCapacity,
		Price:       input.Price,
		OrganizerID: organizerID,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Created(c, event)
}

func (h *EventHandler) ListEvents(c *gin.Context) {
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.ListEvents(c.Request.Context(), page)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, result)
}

// GetEvent 活动详情，附带容量统计
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.service.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"event":    event,
		"capacity": event.Stats(),
	})
}

func (h *EventHandler) CancelEvent(c *gin.Context) {
	event, err := h.service.CancelEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, event)
}
