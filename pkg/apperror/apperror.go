package apperror

import (
	"errors"
	"fmt"
)

// Kind 错误大类，决定对外的 HTTP 语义
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindNotAuthorized
	KindValidation
	KindConflict
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNotAuthorized:
		return "not_authorized"
	case KindValidation:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Code 稳定的业务原因码
type Code string

const (
	CodeTicketNotFound   Code = "TICKET_NOT_FOUND"
	CodeEventNotFound    Code = "EVENT_NOT_FOUND"
	CodeUserNotFound     Code = "USER_NOT_FOUND"
	CodeCouponNotFound   Code = "COUPON_NOT_FOUND"
	CodeNotAuthorized    Code = "NOT_AUTHORIZED"
	CodeAlreadyUsed      Code = "ALREADY_USED"
	CodeDuplicateCheckIn Code = "DUPLICATE_CHECK_IN"
	CodeEventFull        Code = "EVENT_FULL"
	CodeEventNotOpen     Code = "EVENT_NOT_OPEN"
	CodeTooEarly         Code = "TOO_EARLY"
	CodeEventExists      Code = "EVENT_EXISTS"
	CodeNotForSale       Code = "NOT_FOR_SALE"
	CodeOwnershipChanged Code = "OWNERSHIP_CHANGED"
	CodeSameOwner        Code = "SAME_OWNER"
	CodeWrongEvent       Code = "WRONG_EVENT"
	CodeCouponExpired    Code = "COUPON_EXPIRED"
	CodeUsesExhausted    Code = "USES_EXHAUSTED"
	CodeNotEligible      Code = "NOT_ELIGIBLE"
	CodeBelowMinimum     Code = "BELOW_MINIMUM"
	CodeAlreadyRedeemed  Code = "ALREADY_REDEEMED"
	CodeCouponInUse      Code = "COUPON_IN_USE"
	CodeDuplicateCode    Code = "DUPLICATE_CODE"
	CodeValidation       Code = "VALIDATION_FAILED"
	CodeInternal         Code = "INTERNAL"
)

// Error 面向调用方的结构化错误
type Error struct {
	Kind    Kind           `json:"-"`
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 按原因码比较，便于 errors.Is(err, apperror.New(...)) 之类的判断
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 返回附带额外数据的副本
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(code Code, message string) *Error {
	return New(KindNotFound, code, message)
}

func NotAuthorized(message string) *Error {
	return New(KindNotAuthorized, CodeNotAuthorized, message)
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

func Conflict(code Code, message string) *Error {
	return New(KindConflict, code, message)
}

// Internal 对外只暴露通用信息，具体原因写日志
func Internal() *Error {
	return New(KindInternal, CodeInternal, "Error interno del servidor")
}

// As 从错误链中取出 *Error
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
