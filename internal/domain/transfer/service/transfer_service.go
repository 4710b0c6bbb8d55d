package service

import (
	"context"
	"errors"
	"strings"
	"time"

	ticketmodel "event_ticketing/internal/domain/ticket/model"
	"event_ticketing/internal/domain/transfer/model"
	"event_ticketing/internal/domain/transfer/repository"
	usermodel "event_ticketing/internal/domain/user/model"
	"event_ticketing/pkg/apperror"
	"event_ticketing/pkg/database"
	"event_ticketing/pkg/metrics"
	basemodel "event_ticketing/pkg/model"
	"event_ticketing/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TransferService interface {
	RecordTransfer(ctx context.Context, input RecordInput) (*model.Transfer, error)
	DirectTransfer(ctx context.Context, input DirectInput) (*model.Transfer, error)
	PurchaseResale(ctx context.Context, ticketID, buyerID string, meta basemodel.ClientMeta) (*model.Transfer, error)
	AdminTransfer(ctx context.Context, input AdminInput) (*model.Transfer, error)
	GetTicketTransferHistory(ctx context.Context, ticketID string) ([]model.Transfer, error)
	GetUserTransferHistory(ctx context.Context, userID string) ([]model.Transfer, error)
	GetAllTransfers(ctx context.Context, filter model.Filter, page utils.Pagination) (*utils.PageResult, error)
	GetTransferStats(ctx context.Context, from, to *time.Time) (*Stats, error)
}

// TicketStore 转让用到的门票操作
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*ticketmodel.Ticket, error)
	TransferOwner(ctx context.Context, id, fromOwnerID, toOwnerID string, at time.Time) error
}

// UserDirectory 用户快照来源
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*usermodel.User, error)
	GetUserByEmail(ctx context.Context, email string) (*usermodel.User, error)
}

// RecordInput 一次所有权变更的审计数据
type RecordInput struct {
	TicketID        string
	PreviousOwnerID string
	NewOwnerID      string
	Type            model.TransferType
	Price           *decimal.Decimal
	Notes           string
	Meta            basemodel.ClientMeta
}

// DirectInput 接收人可用 ToUserID 或 ToEmail 指定
type DirectInput struct {
	TicketID   string
	FromUserID string
	ToUserID   string
	ToEmail    string
	Notes      string
	Meta       basemodel.ClientMeta
}

type AdminInput struct {
	TicketID string
	AdminID  string
	ToUserID string
	Notes    string
	Meta     basemodel.ClientMeta
}

type Stats struct {
	ByType           []repository.TypeStats `json:"byType"`
	TotalTransfers   int64                  `json:"totalTransfers"`
	TotalResaleValue decimal.Decimal        `json:"totalResaleValue"`
}

var (
	errTicketNotFound = apperror.NotFound(apperror.CodeTicketNotFound, "Boleto no encontrado")
	errNotOwner       = apperror.NotAuthorized("No eres el propietario de este boleto")
	errTicketUsed     = apperror.Conflict(apperror.CodeAlreadyUsed, "No se puede transferir un boleto utilizado")
	errNotActive      = apperror.Validation("El boleto no está activo")
	errNotForSale     = apperror.Conflict(apperror.CodeNotForSale, "El boleto no está a la venta")
	errSameOwner      = apperror.New(apperror.KindValidation, apperror.CodeSameOwner, "No puedes transferir un boleto a su propietario actual")
	errOwnerChanged   = apperror.Conflict(apperror.CodeOwnershipChanged, "El propietario del boleto cambió, intenta de nuevo")
)

type transferService struct {
	tx      database.Transactor
	repo    repository.TransferRepository
	stats   repository.StatsRepository
	tickets TicketStore
	users   UserDirectory
	metrics *metrics.MetricsCollector
	log     *zap.Logger
	now     func() time.Time
}

func NewTransferService(
	tx database.Transactor,
	repo repository.TransferRepository,
	stats repository.StatsRepository,
	tickets TicketStore,
	users UserDirectory,
	m *metrics.MetricsCollector,
	log *zap.Logger,
) TransferService {
	if log == nil {
		log = zap.NewNop()
	}
	return &transferService{
		tx:      tx,
		repo:    repo,
		stats:   stats,
		tickets: tickets,
		users:   users,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// RecordTransfer 写入审计记录，ctx 已在事务中时加入该事务
func (s *transferService) RecordTransfer(ctx context.Context, input RecordInput) (*model.Transfer, error) {
	if !input.Type.Valid() {
		return nil, apperror.Validation("Tipo de transferencia inválido")
	}
	if input.PreviousOwnerID == input.NewOwnerID {
		return nil, errSameOwner
	}

	var transfer *model.Transfer
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticket(ctx, input.TicketID)
		if err != nil {
			return err
		}
		previous, err := s.users.GetUser(ctx, input.PreviousOwnerID)
		if err != nil {
			return err
		}
		next, err := s.users.GetUser(ctx, input.NewOwnerID)
		if err != nil {
			return err
		}

		transfer = &model.Transfer{
			TicketID:      ticket.ID,
			EventName:     ticket.EventName,
			EventDate:     ticket.EventDate,
			TransferType:  input.Type,
			TransferPrice: input.Price,
			TransferDate:  s.now(),
			Notes:         input.Notes,
			Status:        model.StatusCompleted,
		}
		transfer.SetPrevious(party(previous))
		transfer.SetNew(party(next))
		transfer.SetClientMeta(input.Meta)

		return s.repo.Create(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// DirectTransfer 持有人把门票转给另一位用户
func (s *transferService) DirectTransfer(ctx context.Context, input DirectInput) (*model.Transfer, error) {
	recipient, err := s.recipient(ctx, input.ToUserID, input.ToEmail)
	if err != nil {
		return nil, err
	}

	return s.transfer(ctx, input.TicketID, func(ticket *ticketmodel.Ticket) (RecordInput, error) {
		if !ticket.IsOwnedBy(input.FromUserID) {
			return RecordInput{}, errNotOwner
		}
		return RecordInput{
			PreviousOwnerID: input.FromUserID,
			NewOwnerID:      recipient.ID,
			Type:            model.TypeDirectTransfer,
			Notes:           input.Notes,
			Meta:            input.Meta,
		}, nil
	})
}

// PurchaseResale 买家按挂牌价买下转售门票
func (s *transferService) PurchaseResale(ctx context.Context, ticketID, buyerID string, meta basemodel.ClientMeta) (*model.Transfer, error) {
	return s.transfer(ctx, ticketID, func(ticket *ticketmodel.Ticket) (RecordInput, error) {
		if !ticket.IsForSale {
			return RecordInput{}, errNotForSale
		}
		price := ticket.Price
		return RecordInput{
			PreviousOwnerID: ticket.CurrentOwnerID,
			NewOwnerID:      buyerID,
			Type:            model.TypeResalePurchase,
			Price:           &price,
			Meta:            meta,
		}, nil
	})
}

// AdminTransfer 管理员强制变更持有人
func (s *transferService) AdminTransfer(ctx context.Context, input AdminInput) (*model.Transfer, error) {
	admin, err := s.users.GetUser(ctx, input.AdminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, apperror.NotAuthorized("Solo un administrador puede realizar esta transferencia")
	}
	if _, err := s.users.GetUser(ctx, input.ToUserID); err != nil {
		return nil, err
	}

	notes := input.Notes
	if notes == "" {
		notes = "Transferencia administrativa por " + admin.Email
	}
	return s.transfer(ctx, input.TicketID, func(ticket *ticketmodel.Ticket) (RecordInput, error) {
		return RecordInput{
			PreviousOwnerID: ticket.CurrentOwnerID,
			NewOwnerID:      input.ToUserID,
			Type:            model.TypeAdminTransfer,
			Notes:           notes,
			Meta:            input.Meta,
		}, nil
	})
}

func (s *transferService) GetTicketTransferHistory(ctx context.Context, ticketID string) ([]model.Transfer, error) {
	return s.repo.ListByTicket(ctx, ticketID)
}

func (s *transferService) GetUserTransferHistory(ctx context.Context, userID string) ([]model.Transfer, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *transferService) GetAllTransfers(ctx context.Context, filter model.Filter, page utils.Pagination) (*utils.PageResult, error) {
	if err := validateRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperror.Validation("Tipo de transferencia inválido")
	}

	offset, limit := page.GetPageOffset()
	transfers, total, err := s.repo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, err
	}
	return &utils.PageResult{List: transfers, Total: total, Page: page.Page, Limit: limit}, nil
}

// GetTransferStats 按方式汇总；转售总额只计 resale_purchase
func (s *transferService) GetTransferStats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	byType, err := s.stats.CountByType(ctx, from, to)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByType: byType, TotalResaleValue: decimal.Zero}
	for _, row := range byType {
		stats.TotalTransfers += row.Count
		if row.Type == model.TypeResalePurchase {
			stats.TotalResaleValue = stats.TotalResaleValue.Add(row.TotalValue)
		}
	}
	return stats, nil
}

// transfer 在一个事务内完成：校验门票、条件变更持有人、写审计记录；任一步失败整体回滚
func (s *transferService) transfer(ctx context.Context, ticketID string, build func(*ticketmodel.Ticket) (RecordInput, error)) (*model.Transfer, error) {
	var transfer *model.Transfer
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticket(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.IsUsed {
			return errTicketUsed
		}
		if ticket.Status != ticketmodel.StatusActive {
			return errNotActive
		}

		input, err := build(ticket)
		if err != nil {
			return err
		}
		if input.NewOwnerID == ticket.CurrentOwnerID {
			return errSameOwner
		}
		input.TicketID = ticket.ID

		if err := s.tickets.TransferOwner(ctx, ticket.ID, ticket.CurrentOwnerID, input.NewOwnerID, s.now()); err != nil {
			if errors.Is(err, ticketmodel.ErrOwnerMismatch) {
				return errOwnerChanged
			}
			return err
		}

		transfer, err = s.RecordTransfer(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransfer(string(transfer.TransferType))
	s.log.Info("ticket transferred",
		zap.String("transfer_id", transfer.ID),
		zap.String("ticket_id", transfer.TicketID),
		zap.String("transfer_type", string(transfer.TransferType)),
		zap.String("from_user_id", transfer.PreviousOwnerID),
		zap.String("to_user_id", transfer.NewOwnerID),
	)
	return transfer, nil
}

func (s *transferService) ticket(ctx context.Context, id string) (*ticketmodel.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ticketmodel.ErrTicketNotFound) {
			return nil, errTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (s *transferService) recipient(ctx context.Context, userID, email string) (*usermodel.User, error) {
	switch {
	case userID != "":
		return s.users.GetUser(ctx, userID)
	case strings.TrimSpace(email) != "":
		return s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	}
	return nil, apperror.Validation("Debes indicar el destinatario")
}

func party(u *usermodel.User) model.Party {
	return model.Party{ID: u.ID, Email: u.Email, Name: u.Name}
}

func validateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return apperror.Validation("La fecha inicial debe ser anterior a la fecha final")
	}
	return nil
}
