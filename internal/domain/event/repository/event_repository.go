package repository

import (
	"context"
	"errors"
	"fmt"

	"event_ticketing/internal/domain/event/model"
	"event_ticketing/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetByName(ctx context.Context, name string) (*model.Event, error)
	FindOrCreateByName(ctx context.Context, seed *model.Event) (*model.Event, error)
	List(ctx context.Context, offset, limit int) ([]model.Event, int64, error)
	Admit(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status model.EventStatus) error
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	if err := database.Conn(ctx, r.db).Create(event).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return model.ErrEventExists
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *eventRepository) GetByName(ctx context.Context, name string) (*model.Event, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *eventRepository) first(ctx context.Context, query string, arg interface{}) (*model.Event, error) {
	var event model.Event
	if err := database.Conn(ctx, r.db).Where(query, arg).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || database.IsInvalidInput(err) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// FindOrCreateByName 按名称查找活动，不存在则以 seed 创建；并发创建由唯一索引兜底
func (r *eventRepository) FindOrCreateByName(ctx context.Context, seed *model.Event) (*model.Event, error) {
	err := database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(seed).Error
	if err != nil {
		return nil, fmt.Errorf("find or create event: %w", err)
	}
	return r.GetByName(ctx, seed.Name)
}

func (r *eventRepository) List(ctx context.Context, offset, limit int) ([]model.Event, int64, error) {
	var (
		events []model.Event
		total  int64
	)
	db := database.Conn(ctx, r.db).Model(&model.Event{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	if err := db.Order("date ASC").Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return events, total, nil
}

// Admit 条件自增，容量和状态在同一条 UPDATE 中判断
func (r *eventRepository) Admit(ctx context.Context, id string) error {
	result := database.Conn(ctx, r.db).Model(&model.Event{}).
		Where("id = ? AND current_count < max_capacity AND status IN ?", id, model.OpenStatuses()).
		UpdateColumn("current_count", gorm.Expr("current_count + 1"))

	if result.Error != nil {
		return fmt.Errorf("admit: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 区分失败原因
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !event.Status.AcceptsCheckIn() {
		return model.ErrEventNotOpen
	}
	return model.ErrCapacityExceeded
}

func (r *eventRepository) UpdateStatus(ctx context.Context, id string, status model.EventStatus) error {
	result := database.Conn(ctx, r.db).Model(&model.Event{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("update event status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrEventNotFound
	}
	return nil
}
