package service

import (
	"context"
	"errors"

	eventmodel "event_ticketing/internal/domain/event/model"
	"event_ticketing/internal/domain/ticket/model"
	"event_ticketing/internal/domain/ticket/repository"
	"event_ticketing/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TicketService interface {
	Purchase(ctx context.Context, userID, eventID string, ticketType model.TicketType) (*model.Ticket, error)
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	ListUserTickets(ctx context.Context, userID string) ([]model.Ticket, error)
	ListResale(ctx context.Context, eventName string) ([]model.Ticket, error)
	PutForSale(ctx context.Context, ticketID, ownerID string, price *decimal.Decimal) (*model.Ticket, error)
	RemoveFromSale(ctx context.Context, ticketID, ownerID string) (*model.Ticket, error)
}

// EventReader 购票时读取活动
type EventReader interface {
	GetByID(ctx context.Context, id string) (*eventmodel.Event, error)
}

var (
	errTicketNotFound = apperror.NotFound(apperror.CodeTicketNotFound, "Boleto no encontrado")
	errNotOwner       = apperror.NotAuthorized("No eres el propietario de este boleto")
	errTicketUsed     = apperror.Conflict(apperror.CodeAlreadyUsed, "Este boleto ya fue utilizado")
	errOwnerChanged   = apperror.Conflict(apperror.CodeOwnershipChanged, "El propietario del boleto cambió, intenta de nuevo")
)

type ticketService struct {
	repo   repository.TicketRepository
	events EventReader
	log    *zap.Logger
}

func NewTicketService(repo repository.TicketRepository, events EventReader, log *zap.Logger) TicketService {
	return &ticketService{repo: repo, events: events, log: log}
}

// Purchase 按活动票价出票，持有人即购买人
func (s *ticketService) Purchase(ctx context.Context, userID, eventID string, ticketType model.TicketType) (*model.Ticket, error) {
	if ticketType == "" {
		ticketType = model.TypeGeneral
	}
	if !ticketType.Valid() {
		return nil, apperror.Validation("Tipo de boleto inválido")
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, eventmodel.ErrEventNotFound) {
			return nil, apperror.NotFound(apperror.CodeEventNotFound, "Evento no encontrado")
		}
		return nil, err
	}
	if !event.Status.AcceptsCheckIn() {
		return nil, apperror.Conflict(apperror.CodeEventNotOpen, "El evento no está disponible")
	}

	ticket := &model.Ticket{
		EventID:        event.ID,
		EventName:      event.Name,
		EventDate:      event.Date,
		TicketType:     ticketType,
		Price:          event.Price,
		OriginalPrice:  event.Price,
		PurchasedByID:  userID,
		CurrentOwnerID: userID,
		Status:         model.StatusActive,
		QRCode:         uuid.NewString(),
		Disp:           event.MaxCapacity,
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.log.Info("ticket purchased",
		zap.String("ticket_id", ticket.ID),
		zap.String("event_id", event.ID),
		zap.String("user_id", userID),
		zap.String("ticket_type", string(ticketType)),
	)
	return ticket, nil
}

func (s *ticketService) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	ticket, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrTicketNotFound) {
			return nil, errTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (s *ticketService) ListUserTickets(ctx context.Context, userID string) ([]model.Ticket, error) {
	return s.repo.ListByOwner(ctx, userID)
}

func (s *ticketService) ListResale(ctx context.Context, eventName string) ([]model.Ticket, error) {
	return s.repo.ListForSale(ctx, eventName)
}

func (s *ticketService) PutForSale(ctx context.Context, ticketID, ownerID string, price *decimal.Decimal) (*model.Ticket, error) {
	ticket, err := s.ownedTicket(ctx, ticketID, ownerID)
	if err != nil {
		return nil, err
	}

	if err := ticket.PutForSale(price); err != nil {
		switch {
		case errors.Is(err, model.ErrTicketAlreadyUsed):
			return nil, errTicketUsed
		case errors.Is(err, model.ErrTicketNotActive):
			return nil, apperror.Validation("El boleto no está activo")
		case errors.Is(err, model.ErrInvalidPrice):
			return nil, apperror.Validation("El precio no puede ser negativo")
		}
		return nil, err
	}

	if err := s.repo.UpdateSaleStatus(ctx, ticket.ID, ownerID, true, price); err != nil {
		return nil, s.translateWriteErr(err)
	}

	s.log.Info("ticket listed for resale",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", ownerID),
		zap.String("price", ticket.Price.StringFixed(2)),
	)
	return ticket, nil
}

func (s *ticketService) RemoveFromSale(ctx context.Context, ticketID, ownerID string) (*model.Ticket, error) {
	ticket, err := s.ownedTicket(ctx, ticketID, ownerID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsForSale {
		return ticket, nil
	}

	ticket.RemoveFromSale()
	if err := s.repo.UpdateSaleStatus(ctx, ticket.ID, ownerID, false, nil); err != nil {
		return nil, s.translateWriteErr(err)
	}

	s.log.Info("ticket removed from resale", zap.String("ticket_id", ticket.ID), zap.String("user_id", ownerID))
	return ticket, nil
}

func (s *ticketService) ownedTicket(ctx context.Context, ticketID, ownerID string) (*model.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsOwnedBy(ownerID) {
		return nil, errNotOwner
	}
	if ticket.IsUsed {
		return nil, errTicketUsed
	}
	return ticket, nil
}

func (s *ticketService) translateWriteErr(err error) error {
	if errors.Is(err, model.ErrOwnerMismatch) {
		return errOwnerChanged
	}
	return err
}
