package response

import "event_ticketing/pkg/apperror"

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 用户模块错误 100xx
	ErrUserNotFound = 10002
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 优惠券模块错误 200xx
	ErrCouponNotFound      = 20001
	ErrCouponOutOfStock    = 20002
	ErrCouponClaimed       = 20003
	ErrCouponExpired       = 20004
	ErrCouponWrongEvent    = 20005
	ErrCouponNotEligible   = 20006
	ErrCouponBelowMinimum  = 20007
	ErrCouponInUse         = 20008
	ErrCouponDuplicateCode = 20009

	// 票务/检票模块错误 300xx
	ErrTicketNotFound   = 30001
	ErrTicketUsed       = 30002
	ErrDuplicateCheckIn = 30003
	ErrEventFull        = 30004
	ErrEventNotOpen     = 30005
	ErrCheckInTooEarly  = 30006
	ErrEventNotFound    = 30007
	ErrEventExists      = 30008
	ErrTicketNotForSale = 30009
	ErrOwnershipChanged = 30010
	ErrSameOwner        = 30011

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)

var businessCodes = map[apperror.Code]int{
	apperror.CodeTicketNotFound:   ErrTicketNotFound,
	apperror.CodeEventNotFound:    ErrEventNotFound,
	apperror.CodeUserNotFound:     ErrUserNotFound,
	apperror.CodeCouponNotFound:   ErrCouponNotFound,
	apperror.CodeNotAuthorized:    ErrNoPermission,
	apperror.CodeAlreadyUsed:      ErrTicketUsed,
	apperror.CodeDuplicateCheckIn: ErrDuplicateCheckIn,
	apperror.CodeEventFull:        ErrEventFull,
	apperror.CodeEventNotOpen:     ErrEventNotOpen,
	apperror.CodeTooEarly:         ErrCheckInTooEarly,
	apperror.CodeEventExists:      ErrEventExists,
	apperror.CodeNotForSale:       ErrTicketNotForSale,
	apperror.CodeOwnershipChanged: ErrOwnershipChanged,
	apperror.CodeSameOwner:        ErrSameOwner,
	apperror.CodeWrongEvent:       ErrCouponWrongEvent,
	apperror.CodeCouponExpired:    ErrCouponExpired,
	apperror.CodeUsesExhausted:    ErrCouponOutOfStock,
	apperror.CodeNotEligible:      ErrCouponNotEligible,
	apperror.CodeBelowMinimum:     ErrCouponBelowMinimum,
	apperror.CodeAlreadyRedeemed:  ErrCouponClaimed,
	apperror.CodeCouponInUse:      ErrCouponInUse,
	apperror.CodeDuplicateCode:    ErrCouponDuplicateCode,
	apperror.CodeValidation:       ErrInvalidParam,
	apperror.CodeInternal:         ErrServerInternal,
}

// BusinessCode 原因码对应的数字业务码
func BusinessCode(code apperror.Code) int {
	if c, ok := businessCodes[code]; ok {
		return c
	}
	return CodeError
}
