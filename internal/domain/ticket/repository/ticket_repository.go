package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event_ticketing/internal/domain/ticket/model"
	"event_ticketing/pkg/database"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *model.Ticket) error
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Ticket, error)
	ListForSale(ctx context.Context, eventName string) ([]model.Ticket, error)
	ListActiveForEvent(ctx context.Context, ownerID, eventID, eventName string) ([]model.Ticket, error)
	MarkUsed(ctx context.Context, id string) error
	TransferOwner(ctx context.Context, id, fromOwnerID, toOwnerID string, at time.Time) error
	UpdateSaleStatus(ctx context.Context, id, ownerID string, forSale bool, price *decimal.Decimal) error
}

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *model.Ticket) error {
	if err := database.Conn(ctx, r.db).Create(ticket).Error; err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ticketRepository) first(ctx context.Context, query string, arg interface{}) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := database.Conn(ctx, r.db).Where(query, arg).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || database.IsInvalidInput(err) {
			return nil, model.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Ticket, error) {
	var tickets []model.Ticket
	err := database.Conn(ctx, r.db).
		Where("current_owner_id = ?", ownerID).
		Order("event_date ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("list tickets by owner: %w", err)
	}
	return tickets, nil
}

// ListForSale 转售市场，eventName 为空时返回全部
func (r *ticketRepository) ListForSale(ctx context.Context, eventName string) ([]model.Ticket, error) {
	var tickets []model.Ticket
	db := database.Conn(ctx, r.db).
		Where("is_for_sale = ? AND is_used = ? AND status = ?", true, false, model.StatusActive)
	if eventName != "" {
		db = db.Where("event_name = ?", eventName)
	}
	if err := db.Order("event_date ASC").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("list resale tickets: %w", err)
	}
	return tickets, nil
}

// ListActiveForEvent 用户持有的某活动有效门票，活动按 id 或名称匹配
func (r *ticketRepository) ListActiveForEvent(ctx context.Context, ownerID, eventID, eventName string) ([]model.Ticket, error) {
	var tickets []model.Ticket
	err := database.Conn(ctx, r.db).
		Where("current_owner_id = ? AND status = ?", ownerID, model.StatusActive).
		Where("event_id = ? OR event_name = ?", eventID, eventName).
		Find(&tickets).Error
	if database.IsInvalidInput(err) {
		return []model.Ticket{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list active tickets: %w", err)
	}
	return tickets, nil
}

// MarkUsed 条件更新，已使用的门票不会被再次标记；字段取值由 Ticket.MarkUsed 决定
func (r *ticketRepository) MarkUsed(ctx context.Context, id string) error {
	var ticket model.Ticket
	if err := ticket.MarkUsed(); err != nil {
		return err
	}
	result := database.Conn(ctx, r.db).Model(&model.Ticket{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]interface{}{
			"is_used":     ticket.IsUsed,
			"status":      ticket.Status,
			"is_for_sale": ticket.IsForSale,
		})
	if result.Error != nil {
		return fmt.Errorf("mark ticket used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrTicketAlreadyUsed
	}
	return nil
}

// TransferOwner 以原持有人为条件变更持有人；字段取值由 Ticket.TransferTo 决定，计数在库内自增
func (r *ticketRepository) TransferOwner(ctx context.Context, id, fromOwnerID, toOwnerID string, at time.Time) error {
	ticket := model.Ticket{CurrentOwnerID: fromOwnerID}
	ticket.TransferTo(toOwnerID, at)
	result := database.Conn(ctx, r.db).Model(&model.Ticket{}).
		Where("id = ? AND current_owner_id = ? AND is_used = ?", id, fromOwnerID, false).
		Updates(map[string]interface{}{
			"current_owner_id":   ticket.CurrentOwnerID,
			"is_for_sale":        ticket.IsForSale,
			"last_transfer_date": *ticket.LastTransferDate,
			"transfer_count":     gorm.Expr("transfer_count + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("transfer ticket: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrOwnerMismatch
	}
	return nil
}

func (r *ticketRepository) UpdateSaleStatus(ctx context.Context, id, ownerID string, forSale bool, price *decimal.Decimal) error {
	updates := map[string]interface{}{"is_for_sale": forSale}
	if price != nil {
		updates["price"] = *price
	}
	result := database.Conn(ctx, r.db).Model(&model.Ticket{}).
		Where("id = ? AND current_owner_id = ? AND is_used = ?", id, ownerID, false).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update sale status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrOwnerMismatch
	}
	return nil
}
