package repository

import (
	"context"
	"fmt"
	"time"

	"event_ticketing/internal/domain/checkin/model"

	"github.com/jmoiron/sqlx"
)

type StatusCount struct {
	Status model.CheckInStatus `db:"status" json:"status"`
	Count  int64               `db:"count" json:"count"`
}

type HourlyCount struct {
	Hour  time.Time `db:"hour" json:"hour"`
	Count int64     `db:"count" json:"count"`
}

// StatsRepository 看板聚合查询，走 sqlx
type StatsRepository interface {
	CountByStatus(ctx context.Context, eventName string) ([]StatusCount, error)
	CountByHour(ctx context.Context, eventName string) ([]HourlyCount, error)
}

type statsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

const countByStatusQuery = `
	SELECT status, COUNT(*) AS count
	FROM check_ins
	WHERE event_name = $1 AND deleted_at IS NULL
	GROUP BY status
	ORDER BY status`

const countByHourQuery = `
	SELECT date_trunc('hour', check_in_time) AS hour, COUNT(*) AS count
	FROM check_ins
	WHERE event_name = $1 AND status = 'successful' AND deleted_at IS NULL
	GROUP BY hour
	ORDER BY hour`

func (r *statsRepository) CountByStatus(ctx context.Context, eventName string) ([]StatusCount, error) {
	counts := []StatusCount{}
	if err := r.db.SelectContext(ctx, &counts, countByStatusQuery, eventName); err != nil {
		return nil, fmt.Errorf("count check-ins by status: %w", err)
	}
	return counts, nil
}

func (r *statsRepository) CountByHour(ctx context.Context, eventName string) ([]HourlyCount, error) {
	counts := []HourlyCount{}
	if err := r.db.SelectContext(ctx, &counts, countByHourQuery, eventName); err != nil {
		return nil, fmt.Errorf("count check-ins by hour: %w", err)
	}
	return counts, nil
}
