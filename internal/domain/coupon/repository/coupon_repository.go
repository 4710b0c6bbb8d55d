package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"event_ticketing/internal/domain/coupon/model"
	"event_ticketing/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CouponRepository interface {
	Create(ctx context.Context, coupon *model.Coupon) error
	GetByID(ctx context.Context, id string) (*model.Coupon, error)
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*model.Coupon, error)
	ListByEvent(ctx context.Context, eventID string, includeExpired bool, now time.Time) ([]model.Coupon, error)
	IncrementUses(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error

	CreateUsage(ctx context.Context, usage *model.CouponUsage) error
	HasUsage(ctx context.Context, couponID, userID string) (bool, error)
	UsedCouponIDs(ctx context.Context, userID string, couponIDs []string) ([]string, error)
}

type couponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

// NormalizeCode 券码统一大写存储和查询
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *couponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	coupon.Code = NormalizeCode(coupon.Code)
	if err := database.Conn(ctx, r.db).Create(coupon).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return model.ErrDuplicateCode
		}
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

func (r *couponRepository) GetByID(ctx context.Context, id string) (*model.Coupon, error) {
	return r.first(database.Conn(ctx, r.db), "id = ?", id)
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return r.first(database.Conn(ctx, r.db), "code = ?", NormalizeCode(code))
}

// GetByCodeForUpdate 行锁读取，需在事务内调用；并发核销同一张券时串行
func (r *couponRepository) GetByCodeForUpdate(ctx context.Context, code string) (*model.Coupon, error) {
	db := database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.first(db, "code = ?", NormalizeCode(code))
}

func (r *couponRepository) first(db *gorm.DB, query string, arg interface{}) (*model.Coupon, error) {
	var coupon model.Coupon
	if err := db.Where(query, arg).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || database.IsInvalidInput(err) {
			return nil, model.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return &coupon, nil
}

// ListByEvent 活动专属券和通用券，includeExpired 为 false 时过滤已过期
func (r *couponRepository) ListByEvent(ctx context.Context, eventID string, includeExpired bool, now time.Time) ([]model.Coupon, error) {
	var coupons []model.Coupon
	db := database.Conn(ctx, r.db).
		Where("is_active = ?", true).
		Where("event_id = ? OR event_id IS NULL", eventID)
	if !includeExpired {
		db = db.Where("valid_until >= ?", now)
	}
	if err := db.Order("valid_until ASC").Find(&coupons).Error; err != nil {
		if database.IsInvalidInput(err) {
			return []model.Coupon{}, nil
		}
		return nil, fmt.Errorf("list event coupons: %w", err)
	}
	return coupons, nil
}

// IncrementUses 条件自增，已达上限或已停用时不更新
func (r *couponRepository) IncrementUses(ctx context.Context, id string) error {
	result := database.Conn(ctx, r.db).Model(&model.Coupon{}).
		Where("id = ? AND current_uses < max_uses AND is_active = ?", id, true).
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
	if result.Error != nil {
		return fmt.Errorf("increment coupon uses: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrUsesExhausted
	}
	return nil
}

func (r *couponRepository) Deactivate(ctx context.Context, id string) error {
	result := database.Conn(ctx, r.db).Model(&model.Coupon{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivate coupon: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrCouponNotFound
	}
	return nil
}

// Delete 只删除从未核销过的券
func (r *couponRepository) Delete(ctx context.Context, id string) error {
	result := database.Conn(ctx, r.db).
		Where("id = ? AND current_uses = 0", id).
		Delete(&model.Coupon{})
	if result.Error != nil {
		return fmt.Errorf("delete coupon: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return model.ErrCouponInUse
}

// CreateUsage (coupon_id, user_id) 唯一索引冲突即重复核销
func (r *couponRepository) CreateUsage(ctx context.Context, usage *model.CouponUsage) error {
	if err := database.Conn(ctx, r.db).Create(usage).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return model.ErrAlreadyRedeemed
		}
		return fmt.Errorf("create coupon usage: %w", err)
	}
	return nil
}

func (r *couponRepository) HasUsage(ctx context.Context, couponID, userID string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&model.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count coupon usages: %w", err)
	}
	return count > 0, nil
}

func (r *couponRepository) UsedCouponIDs(ctx context.Context, userID string, couponIDs []string) ([]string, error) {
	if len(couponIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := database.Conn(ctx, r.db).Model(&model.CouponUsage{}).
		Where("user_id = ? AND coupon_id IN ?", userID, couponIDs).
		Pluck("coupon_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list used coupons: %w", err)
	}
	return ids, nil
}
