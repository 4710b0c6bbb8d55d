package handler

import (
	"net/http"

	"event_ticketing/internal/domain/checkin/model"
	"event_ticketing/internal/domain/checkin/service"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/pkg/apperror"
	"event_ticketing/pkg/response"
	"event_ticketing/pkg/utils"

	"github.com/gin-gonic/gin"
)

type CheckInHandler struct {
	service service.CheckInService
}

func NewCheckInHandler(service service.CheckInService) *CheckInHandler {
	return &CheckInHandler{service: service}
}

type CheckInInput struct {
	TicketID           string                   `json:"ticketId" binding:"required"`
	VerificationMethod model.VerificationMethod `json:"verificationMethod"`
	Location           *model.Location          `json:"location"`
	Notes              string                   `json:"notes" binding:"max=500"`
}

// CheckIn 扫码检票，业务拒绝返回对应状态码和失败原因
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var input CheckInInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	result, err := h.service.ProcessCheckIn(c.Request.Context(), service.ProcessInput{
		TicketID: input.TicketID,
		UserID:   userID,
		Method:   input.VerificationMethod,
		Location: input.Location,
		Notes:    input.Notes,
		Meta:     middleware.ClientMeta(c),
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	if !result.Success {
		response.AppError(c, result.Error)
		return
	}
	response.Success(c, result.Data)
}

func (h *CheckInHandler) Eligibility(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	eligibility, err := h.service.ValidateCheckInEligibility(c.Request.Context(), c.Param("ticketId"), userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, eligibility)
}

func (h *CheckInHandler) CapacityStats(c *gin.Context) {
	eventName := c.Query("event")
	if eventName == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "event is required")
		return
	}

	report, err := h.service.GetEventCapacityStats(c.Request.Context(), eventName)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	if report == nil {
		response.AppError(c, apperror.NotFound(apperror.CodeEventNotFound, "Evento no encontrado"))
		return
	}
	response.Success(c, report)
}

func (h *CheckInHandler) ListCheckIns(c *gin.Context) {
	eventName := c.Query("event")
	if eventName == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "event is required")
		return
	}

	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.ListEventCheckIns(c.Request.Context(), eventName, page)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, result)
}
