package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"event_ticketing/internal/domain/event/model"
	"event_ticketing/internal/domain/event/repository"
	"event_ticketing/pkg/apperror"
	"event_ticketing/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type EventService interface {
	CreateEvent(ctx context.Context, input CreateEventInput) (*model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	GetEventByName(ctx context.Context, name string) (*model.Event, error)
	ListEvents(ctx context.Context, page utils.Pagination) (*utils.PageResult, error)
	CancelEvent(ctx context.Context, id string) (*model.Event, error)
}

type CreateEventInput struct {
	Name        string
	Description string
	Date        time.Time
	Location    string
	MaxCapacity int
	Price       decimal.Decimal
	OrganizerID string
}

var errEventNotFound = apperror.NotFound(apperror.CodeEventNotFound, "Evento no encontrado")

type eventService struct {
	repo       repository.EventRepository
	ongoingFor time.Duration
	log        *zap.Logger
	now        func() time.Time
}

func NewEventService(repo repository.EventRepository, ongoingFor time.Duration, log *zap.Logger) EventService {
	return &eventService{
		repo:       repo,
		ongoingFor: ongoingFor,
		log:        log,
		now:        time.Now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, input CreateEventInput) (*model.Event, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.Validation("El nombre del evento es obligatorio")
	}
	if input.MaxCapacity <= 0 {
		return nil, apperror.Validation("La capacidad máxima debe ser mayor que cero")
	}
	if input.Date.IsZero() {
		return nil, apperror.Validation("La fecha del evento es obligatoria")
	}
	if input.Price.IsNegative() {
		return nil, apperror.Validation("El precio no puede ser negativo")
	}

	event := &model.Event{
		Name:        name,
		Description: input.Description,
		Date:        input.Date,
		Location:    input.Location,
		MaxCapacity: input.MaxCapacity,
		Price:       input.Price,
		Status:      model.StatusUpcoming,
	}
	if input.OrganizerID != "" {
		event.OrganizerID = &input.OrganizerID
	}
	event.Status = event.StatusAt(s.now(), s.ongoingFor)

	if err := s.repo.Create(ctx, event); err != nil {
		if errors.Is(err, model.ErrEventExists) {
			return nil, apperror.Conflict(apperror.CodeEventExists, "Ya existe un evento con ese nombre")
		}
		return nil, err
	}

	s.log.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("event_name", event.Name),
		zap.Int("max_capacity", event.MaxCapacity),
	)
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return nil, errEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *eventService) GetEventByName(ctx context.Context, name string) (*model.Event, error) {
	event, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return nil, errEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, page utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	events, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return &utils.PageResult{List: events, Total: total, Page: page.Page, Limit: limit}, nil
}

// CancelEvent 取消后不再接受检票，已检票人数保留
func (s *eventService) CancelEvent(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status == model.StatusCancelled {
		return event, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, model.StatusCancelled); err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return nil, errEventNotFound
		}
		return nil, err
	}
	event.Status = model.StatusCancelled

	s.log.Info("event cancelled", zap.String("event_id", id), zap.Int("current_count", event.CurrentCount))
	return event, nil
}
