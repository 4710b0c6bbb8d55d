package repository

import (
	"context"
	"fmt"
	"time"

	"event_ticketing/internal/domain/transfer/model"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// TypeStats 按转让方式聚合，金额只统计带价格的记录
type TypeStats struct {
	Type         model.TransferType `db:"transfer_type" json:"transferType"`
	Count        int64              `db:"count" json:"count"`
	TotalValue   decimal.Decimal    `db:"total_value" json:"totalValue"`
	AverageValue decimal.Decimal    `db:"average_value" json:"averageValue"`
}

type StatsRepository interface {
	CountByType(ctx context.Context, from, to *time.Time) ([]TypeStats, error)
}

type statsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

const countByTypeQuery = `
	SELECT transfer_type,
	       COUNT(*) AS count,
	       COALESCE(SUM(transfer_price), 0) AS total_value,
	       COALESCE(ROUND(AVG(transfer_price), 2), 0) AS average_value
	FROM transfers
	WHERE deleted_at IS NULL
	  AND ($1::timestamptz IS NULL OR transfer_date >= $1)
	  AND ($2::timestamptz IS NULL OR transfer_date <= $2)
	GROUP BY transfer_type
	ORDER BY transfer_type`

func (r *statsRepository) CountByType(ctx context.Context, from, to *time.Time) ([]TypeStats, error) {
	stats := []TypeStats{}
	if err := r.db.SelectContext(ctx, &stats, countByTypeQuery, from, to); err != nil {
		return nil, fmt.Errorf("count transfers by type: %w", err)
	}
	return stats, nil
}
