package handler

import (
	"net/http"
	"time"

	"event_ticketing/internal/domain/coupon/model"
	"event_ticketing/internal/domain/coupon/service"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CouponHandler struct {
	service service.CouponService
}

func NewCouponHandler(service service.CouponService) *CouponHandler {
	return &CouponHandler{service: service}
}

// CreateCouponInput 金额字段接受数字或字符串
type CreateCouponInput struct {
	Code              string             `json:"code" binding:"required,max=50"`
	EventID           string             `json:"eventId"`
	Title             string             `json:"title" binding:"required,max=200"`
	Description       string             `json:"description" binding:"max=1000"`
	DiscountType      model.DiscountType `json:"discountType" binding:"required"`
	DiscountValue     decimal.Decimal    `json:"discountValue"`
	MinPurchaseAmount *decimal.Decimal   `json:"minPurchaseAmount"`
	MaxDiscountAmount *decimal.Decimal   `json:"maxDiscountAmount"`
	ValidFrom         time.Time          `json:"validFrom" binding:"required"`
	ValidUntil        time.Time          `json:"validUntil" binding:"required"`
	MaxUses           int                `json:"maxUses" binding:"required,min=1"`
	TargetAudience    model.Audience     `json:"targetAudience"`
	SpecificUserIDs   []string           `json:"specificUserIds"`
	EarlyBirdDeadline *time.Time         `json:"earlyBirdDeadline"`
}

type RedeemInput struct {
	Code    string          `json:"code" binding:"required"`
	EventID string          `json:"eventId" binding:"required,uuid"`
	Amount  decimal.Decimal `json:"amount"`
}

// CreateCoupon 创建优惠券
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var input CreateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	coupon, err := h.service.CreateCoupon(c.Request.Context(), service.CreateInput{
		Code:              input.Code,
		EventID:           input.EventID,
		Title:             input.Title,
		Description:       input.Description,
		DiscountType:      input.DiscountType,
		DiscountValue:     input.DiscountValue,
		MinPurchaseAmount: input.MinPurchaseAmount,
		MaxDiscountAmount: input.MaxDiscountAmount,
		ValidFrom:         input.ValidFrom,
		ValidUntil:        input.ValidUntil,
		MaxUses:           input.MaxUses,
		TargetAudience:    input.TargetAudience,
		SpecificUserIDs:   input.SpecificUserIDs,
		EarlyBirdDeadline: input.EarlyBirdDeadline,
		CreatedByID:       userID,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Created(c, coupon)
}

// ValidateCoupon 校验结果总是 200，是否可用看 isValid
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var input RedeemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	result, err := h.service.ValidateCoupon(c.Request.Context(), input.Code, userID, input.EventID, input.Amount)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, result)
}

// ApplyCoupon 核销优惠券
func (h *CouponHandler) ApplyCoupon(c *gin.Context) {
	var input RedeemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	result, err := h.service.ApplyCoupon(c.Request.Context(), service.ApplyInput{
		Code:           input.Code,
		UserID:         userID,
		EventID:        input.EventID,
		OriginalAmount: input.Amount,
		Meta:           middleware.ClientMeta(c),
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	if !result.Success {
		response.AppError(c, result.Error)
		return
	}
	response.Success(c, result)
}

// eventIDParam 路径中的活动 ID 必须是 uuid
func eventIDParam(c *gin.Context) (string, bool) {
	id := c.Param("eventId")
	if _, err := uuid.Parse(id); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "eventId inválido")
		return "", false
	}
	return id, true
}

func (h *CouponHandler) EventCoupons(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	includeExpired := c.Query("includeExpired") == "true"
	coupons, err := h.service.GetEventCoupons(c.Request.Context(), eventID, includeExpired)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, coupons)
}

// MyEventCoupons 当前用户在该活动可用的券
func (h *CouponHandler) MyEventCoupons(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUserID(c)
	coupons, err := h.service.GetUserEventCoupons(c.Request.Context(), userID, eventID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, coupons)
}

func (h *CouponHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetCouponStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *CouponHandler) Deactivate(c *gin.Context) {
	if err := h.service.DeactivateCoupon(c.Request.Context(), c.Param("id")); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, "Cupón desactivado")
}

func (h *CouponHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteCoupon(c.Request.Context(), c.Param("id")); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, "Cupón eliminado")
}
