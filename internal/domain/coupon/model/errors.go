package model

import "errors"

var (
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrDuplicateCode   = errors.New("coupon code already exists")
	ErrUsesExhausted   = errors.New("coupon has no uses left")
	ErrAlreadyRedeemed = errors.New("coupon already redeemed by user")
	ErrCouponInUse     = errors.New("coupon has been redeemed")
	ErrImmutable       = errors.New("coupon usages are append-only")
)

// 创建校验
var (
	ErrEmptyCode           = errors.New("code is required")
	ErrInvalidDiscountType = errors.New("invalid discount type")
	ErrNegativeDiscount    = errors.New("discount value must not be negative")
	ErrPercentageRange     = errors.New("percentage must be between 0 and 100")
	ErrInvalidWindow       = errors.New("validFrom must be before validUntil")
	ErrInvalidMaxUses      = errors.New("maxUses must be positive")
	ErrInvalidAudience     = errors.New("invalid target audience")
	ErrMissingUsers        = errors.New("specific_users audience requires user ids")
)
