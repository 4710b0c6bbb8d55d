package repository

import (
	"context"
	"fmt"

	"event_ticketing/internal/domain/transfer/model"
	"event_ticketing/pkg/database"

	"gorm.io/gorm"
)

type TransferRepository interface {
	Create(ctx context.Context, transfer *model.Transfer) error
	ListByTicket(ctx context.Context, ticketID string) ([]model.Transfer, error)
	ListByUser(ctx context.Context, userID string) ([]model.Transfer, error)
	List(ctx context.Context, filter model.Filter, offset, limit int) ([]model.Transfer, int64, error)
}

type transferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &transferRepository{db: db}
}

func (r *transferRepository) Create(ctx context.Context, transfer *model.Transfer) error {
	if err := database.Conn(ctx, r.db).Create(transfer).Error; err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

// ListByTicket 按时间正序，便于还原持有链
func (r *transferRepository) ListByTicket(ctx context.Context, ticketID string) ([]model.Transfer, error) {
	var transfers []model.Transfer
	err := database.Conn(ctx, r.db).
		Where("ticket_id = ?", ticketID).
		Order("transfer_date ASC").
		Find(&transfers).Error
	if database.IsInvalidInput(err) {
		return []model.Transfer{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list ticket transfers: %w", err)
	}
	return transfers, nil
}

// ListByUser 用户作为转出方或转入方的全部记录
func (r *transferRepository) ListByUser(ctx context.Context, userID string) ([]model.Transfer, error) {
	var transfers []model.Transfer
	err := database.Conn(ctx, r.db).
		Where("previous_owner_id = ? OR new_owner_id = ?", userID, userID).
		Order("transfer_date DESC").
		Find(&transfers).Error
	if err != nil {
		return nil, fmt.Errorf("list user transfers: %w", err)
	}
	return transfers, nil
}

func (r *transferRepository) List(ctx context.Context, filter model.Filter, offset, limit int) ([]model.Transfer, int64, error) {
	var (
		transfers []model.Transfer
		total     int64
	)
	db := database.Conn(ctx, r.db).Model(&model.Transfer{})
	if filter.From != nil {
		db = db.Where("transfer_date >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("transfer_date <= ?", *filter.To)
	}
	if filter.Type != "" {
		db = db.Where("transfer_type = ?", filter.Type)
	}
	if filter.UserID != "" {
		db = db.Where("previous_owner_id = ? OR new_owner_id = ?", filter.UserID, filter.UserID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transfers: %w", err)
	}
	if err := db.Order("transfer_date DESC").Offset(offset).Limit(limit).Find(&transfers).Error; err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, total, nil
}
