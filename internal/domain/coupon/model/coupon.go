package model

import (
	"time"

	basemodel "event_ticketing/pkg/model"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DiscountType 折扣方式
type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
	DiscountFreeItem    DiscountType = "free_item"
)

func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixedAmount, DiscountFreeItem:
		return true
	}
	return false
}

// Audience 可用人群
type Audience string

const (
	AudienceAllAttendees  Audience = "all_attendees"
	AudienceVIPAttendees  Audience = "vip_attendees"
	AudienceEarlyBirds    Audience = "early_birds"
	AudienceSpecificUsers Audience = "specific_users"
)

func (a Audience) Valid() bool {
	switch a {
	case AudienceAllAttendees, AudienceVIPAttendees, AudienceEarlyBirds, AudienceSpecificUsers:
		return true
	}
	return false
}

var hundred = decimal.NewFromInt(100)

// Coupon 优惠券定义
// CurrentUses 只能经由核销路径递增，且与 CouponUsage 同事务写入
type Coupon struct {
	basemodel.BaseModel
	Code              string              `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	EventID           *string             `gorm:"type:uuid;index" json:"eventId,omitempty"`
	EventName         string              `gorm:"type:varchar(200)" json:"eventName,omitempty"`
	Title             string              `gorm:"type:varchar(100);not null" json:"title"`
	Description       string              `gorm:"type:text" json:"description,omitempty"`
	DiscountType      DiscountType        `gorm:"type:varchar(20);not null" json:"discountType"`
	DiscountValue     decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"discountValue"`
	MinPurchaseAmount decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"minPurchaseAmount"`
	MaxDiscountAmount decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"maxDiscountAmount"`
	ValidFrom         time.Time           `gorm:"not null" json:"validFrom"`
	ValidUntil        time.Time           `gorm:"not null;index" json:"validUntil"`
	MaxUses           int                 `gorm:"not null" json:"maxUses"`
	CurrentUses       int                 `gorm:"not null;default:0" json:"currentUses"`
	IsActive          bool                `gorm:"not null;default:true;index" json:"isActive"`
	TargetAudience    Audience            `gorm:"type:varchar(20);not null" json:"targetAudience"`
	SpecificUserIDs   pq.StringArray      `gorm:"type:text[]" json:"specificUserIds,omitempty"`
	EarlyBirdDeadline *time.Time          `json:"earlyBirdDeadline,omitempty"`
	CreatedByID       string              `gorm:"type:uuid;not null" json:"createdBy"`
}

// CalculateDiscount 按折扣方式计算，先按封顶截断，再截断到购买金额，结果不为负
func (c *Coupon) CalculateDiscount(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = amount.Mul(c.DiscountValue).Div(hundred).Round(2)
	case DiscountFixedAmount, DiscountFreeItem:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if c.MaxDiscountAmount.Valid && discount.GreaterThan(c.MaxDiscountAmount.Decimal) {
		discount = c.MaxDiscountAmount.Decimal
	}
	if discount.GreaterThan(amount) {
		discount = amount
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount
}

// AppliesTo 未限定活动的券对所有活动有效
func (c *Coupon) AppliesTo(eventID string) bool {
	return c.EventID == nil || *c.EventID == eventID
}

func (c *Coupon) IsWithinWindow(now time.Time) bool {
	return !now.Before(c.ValidFrom) && !now.After(c.ValidUntil)
}

func (c *Coupon) HasUsesLeft() bool {
	return c.CurrentUses < c.MaxUses
}

func (c *Coupon) RemainingUses() int {
	if c.CurrentUses >= c.MaxUses {
		return 0
	}
	return c.MaxUses - c.CurrentUses
}

func (c *Coupon) MeetsMinimum(amount decimal.Decimal) bool {
	return !c.MinPurchaseAmount.Valid || amount.GreaterThanOrEqual(c.MinPurchaseAmount.Decimal)
}

func (c *Coupon) IsListedUser(userID string) bool {
	for _, id := range c.SpecificUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// EarlyBirdCutoff 未设置时以生效时间为准
func (c *Coupon) EarlyBirdCutoff() time.Time {
	if c.EarlyBirdDeadline != nil {
		return *c.EarlyBirdDeadline
	}
	return c.ValidFrom
}

// Check 创建时的不变量校验
func (c *Coupon) Check() error {
	switch {
	case c.Code == "":
		return ErrEmptyCode
	case !c.DiscountType.Valid():
		return ErrInvalidDiscountType
	case c.DiscountValue.IsNegative():
		return ErrNegativeDiscount
	case c.DiscountType == DiscountPercentage && c.DiscountValue.GreaterThan(hundred):
		return ErrPercentageRange
	case !c.ValidFrom.Before(c.ValidUntil):
		return ErrInvalidWindow
	case c.MaxUses <= 0:
		return ErrInvalidMaxUses
	case !c.TargetAudience.Valid():
		return ErrInvalidAudience
	case c.TargetAudience == AudienceSpecificUsers && len(c.SpecificUserIDs) == 0:
		return ErrMissingUsers
	}
	return nil
}

// CouponUsage 核销记录，每个用户每张券最多一条
type CouponUsage struct {
	basemodel.BaseModel
	CouponID        string          `gorm:"type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_user" json:"couponId"`
	UserID          string          `gorm:"type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_user;index" json:"userId"`
	EventID         string          `gorm:"type:uuid;not null;index" json:"eventId"`
	DiscountApplied decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discountApplied"`
	OriginalAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"originalAmount"`
	FinalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"finalAmount"`
	UsedAt          time.Time       `gorm:"not null" json:"usedAt"`
	ClientIP        string          `gorm:"type:varchar(64)" json:"clientIp,omitempty"`
	UserAgent       string          `gorm:"type:varchar(255)" json:"userAgent,omitempty"`
}

func (u *CouponUsage) SetClientMeta(meta basemodel.ClientMeta) {
	meta = meta.Clamped()
	u.ClientIP = meta.IPAddress
	u.UserAgent = meta.UserAgent
}

func (u *CouponUsage) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutable
}

func (u *CouponUsage) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutable
}
