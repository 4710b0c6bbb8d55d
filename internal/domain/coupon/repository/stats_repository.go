package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type UsageSummary struct {
	TotalUses       int64           `db:"total_uses" json:"totalUses"`
	UniqueUsers     int64           `db:"unique_users" json:"uniqueUsers"`
	TotalDiscount   decimal.Decimal `db:"total_discount" json:"totalDiscount"`
	TotalOriginal   decimal.Decimal `db:"total_original" json:"totalOriginal"`
	TotalFinal      decimal.Decimal `db:"total_final" json:"totalFinal"`
	AverageDiscount decimal.Decimal `db:"average_discount" json:"averageDiscount"`
}

type DailyUsage struct {
	Day      time.Time       `db:"day" json:"day"`
	Uses     int64           `db:"uses" json:"uses"`
	Discount decimal.Decimal `db:"discount" json:"discount"`
}

// StatsRepository 核销统计，走 sqlx
type StatsRepository interface {
	Summary(ctx context.Context, couponID string) (*UsageSummary, error)
	Daily(ctx context.Context, couponID string) ([]DailyUsage, error)
}

type statsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

const summaryQuery = `
	SELECT COUNT(*) AS total_uses,
	       COUNT(DISTINCT user_id) AS unique_users,
	       COALESCE(SUM(discount_applied), 0) AS total_discount,
	       COALESCE(SUM(original_amount), 0) AS total_original,
	       COALESCE(SUM(final_amount), 0) AS total_final,
	       COALESCE(ROUND(AVG(discount_applied), 2), 0) AS average_discount
	FROM coupon_usages
	WHERE coupon_id = $1 AND deleted_at IS NULL`

const dailyQuery = `
	SELECT date_trunc('day', used_at) AS day,
	       COUNT(*) AS uses,
	       COALESCE(SUM(discount_applied), 0) AS discount
	FROM coupon_usages
	WHERE coupon_id = $1 AND deleted_at IS NULL
	GROUP BY day
	ORDER BY day`

func (r *statsRepository) Summary(ctx context.Context, couponID string) (*UsageSummary, error) {
	var summary UsageSummary
	if err := r.db.GetContext(ctx, &summary, summaryQuery, couponID); err != nil {
		return nil, fmt.Errorf("coupon usage summary: %w", err)
	}
	return &summary, nil
}

func (r *statsRepository) Daily(ctx context.Context, couponID string) ([]DailyUsage, error) {
	days := []DailyUsage{}
	if err := r.db.SelectContext(ctx, &days, dailyQuery, couponID); err != nil {
		return nil, fmt.Errorf("coupon daily usage: %w", err)
	}
	return days, nil
}
