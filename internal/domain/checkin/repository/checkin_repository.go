package repository

import (
	"context"
	"fmt"

	"event_ticketing/internal/domain/checkin/model"
	"event_ticketing/pkg/database"

	"gorm.io/gorm"
)

type CheckInRepository interface {
	Create(ctx context.Context, record *model.CheckIn) error
	HasSuccessful(ctx context.Context, ticketID string) (bool, error)
	ListByEvent(ctx context.Context, eventName string, offset, limit int) ([]model.CheckIn, int64, error)
}

type checkInRepository struct {
	db *gorm.DB
}

func NewCheckInRepository(db *gorm.DB) CheckInRepository {
	return &checkInRepository{db: db}
}

// Create 第二条 successful 记录会触发部分唯一索引
func (r *checkInRepository) Create(ctx context.Context, record *model.CheckIn) error {
	if err := database.Conn(ctx, r.db).Create(record).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return model.ErrDuplicateCheckIn
		}
		return fmt.Errorf("create check-in: %w", err)
	}
	return nil
}

func (r *checkInRepository) HasSuccessful(ctx context.Context, ticketID string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&model.CheckIn{}).
		Where("ticket_id = ? AND status = ?", ticketID, model.CheckInStatusSuccessful).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count check-ins: %w", err)
	}
	return count > 0, nil
}

func (r *checkInRepository) ListByEvent(ctx context.Context, eventName string, offset, limit int) ([]model.CheckIn, int64, error) {
	var (
		records []model.CheckIn
		total   int64
	)
	db := database.Conn(ctx, r.db).Model(&model.CheckIn{}).Where("event_name = ?", eventName)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count check-ins: %w", err)
	}
	if err := db.Order("check_in_time DESC").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("list check-ins: %w", err)
	}
	return records, total, nil
}
