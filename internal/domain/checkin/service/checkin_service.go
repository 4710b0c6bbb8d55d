package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"event_ticketing/internal/domain/checkin/model"
	"event_ticketing/internal/domain/checkin/repository"
	eventmodel "event_ticketing/internal/domain/event/model"
	ticketmodel "event_ticketing/internal/domain/ticket/model"
	"event_ticketing/pkg/apperror"
	"event_ticketing/pkg/cache"
	"event_ticketing/pkg/database"
	"event_ticketing/pkg/metrics"
	basemodel "event_ticketing/pkg/model"
	"event_ticketing/pkg/utils"

	"go.uber.org/zap"
)

type CheckInService interface {
	ProcessCheckIn(ctx context.Context, input ProcessInput) (*Result, error)
	ValidateCheckInEligibility(ctx context.Context, ticketID, userID string) (*Eligibility, error)
	GetEventCapacityStats(ctx context.Context, eventName string) (*CapacityReport, error)
	ListEventCheckIns(ctx context.Context, eventName string, page utils.Pagination) (*utils.PageResult, error)
}

// TicketStore 检票用到的门票操作
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*ticketmodel.Ticket, error)
	MarkUsed(ctx context.Context, id string) error
}

// EventStore 检票用到的活动操作
type EventStore interface {
	GetByName(ctx context.Context, name string) (*eventmodel.Event, error)
	FindOrCreateByName(ctx context.Context, seed *eventmodel.Event) (*eventmodel.Event, error)
	Admit(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status eventmodel.EventStatus) error
}

// AuditQueue 失败检票记录的异步写入队列
type AuditQueue interface {
	Enqueue(record *model.CheckIn) bool
}

type ProcessInput struct {
	TicketID string
	UserID   string
	Method   model.VerificationMethod
	Location *model.Location
	Notes    string
	Meta     basemodel.ClientMeta
}

type Result struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    *ResultData     `json:"data,omitempty"`
	Error   *apperror.Error `json:"error,omitempty"`
}

type ResultData struct {
	CheckIn   *model.CheckIn           `json:"checkIn"`
	EventID   string                   `json:"eventId"`
	EventName string                   `json:"eventName"`
	Capacity  eventmodel.CapacityStats `json:"capacity"`
}

type Eligibility struct {
	Eligible bool          `json:"eligible"`
	Reason   string        `json:"reason,omitempty"`
	Code     apperror.Code `json:"code,omitempty"`
}

type CheckInStats struct {
	ByStatus []repository.StatusCount `json:"byStatus"`
	ByHour   []repository.HourlyCount `json:"byHour"`
}

type CapacityReport struct {
	Event        *eventmodel.Event        `json:"event"`
	Capacity     eventmodel.CapacityStats `json:"capacity"`
	CheckInStats CheckInStats             `json:"checkInStats"`
}

// Options 检票规则参数
type Options struct {
	EarlyWindow     time.Duration // 开场前多久开放检票
	OngoingFor      time.Duration // 开场后多久视为结束
	DefaultCapacity int           // 自动建活动且门票没有容量信息时使用
	StatsCacheTTL   time.Duration
}

type Dependencies struct {
	Transactor database.Transactor
	Tickets    TicketStore
	Events     EventStore
	CheckIns   repository.CheckInRepository
	Stats      repository.StatsRepository
	Guard      repository.ScanGuard // 可为空
	Audit      AuditQueue           // 为空时同步写失败记录
	Cache      cache.CacheService   // 可为空
	Metrics    *metrics.MetricsCollector
	Logger     *zap.Logger
}

const (
	msgSuccess = "Check-in realizado exitosamente"
	statsKey   = "checkin:stats:"
)

var (
	errTicketNotFound = apperror.NotFound(apperror.CodeTicketNotFound, "Boleto no encontrado")
	errNotOwner       = apperror.NotAuthorized("No tienes permiso para hacer check-in con este boleto")
	errAlreadyUsed    = apperror.Conflict(apperror.CodeAlreadyUsed, "Este boleto ya fue utilizado")
	errDuplicate      = apperror.Conflict(apperror.CodeDuplicateCheckIn, "Ya existe un check-in para este boleto")
	errInProgress     = apperror.Conflict(apperror.CodeDuplicateCheckIn, "Check-in en curso para este boleto")
	errNotOpen        = apperror.Conflict(apperror.CodeEventNotOpen, "El evento no está disponible para check-in")
	errEventFull      = apperror.Conflict(apperror.CodeEventFull, "El evento ha alcanzado su capacidad máxima")
)

type checkInService struct {
	tx       database.Transactor
	tickets  TicketStore
	events   EventStore
	checkIns repository.CheckInRepository
	stats    repository.StatsRepository
	guard    repository.ScanGuard
	audit    AuditQueue
	cache    cache.CacheService
	metrics  *metrics.MetricsCollector
	log      *zap.Logger
	opts     Options
	now      func() time.Time
}

func NewCheckInService(deps Dependencies, opts Options) CheckInService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.DefaultCapacity <= 0 {
		opts.DefaultCapacity = 1000
	}
	return &checkInService{
		tx:       deps.Transactor,
		tickets:  deps.Tickets,
		events:   deps.Events,
		checkIns: deps.CheckIns,
		stats:    deps.Stats,
		guard:    deps.Guard,
		audit:    deps.Audit,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		opts:     opts,
		now:      time.Now,
	}
}

// ProcessCheckIn 校验并在一个事务内提交：检票记录、活动计数加一、门票作废
// 业务拒绝以 Result 返回，只有存储故障才返回 error
func (s *checkInService) ProcessCheckIn(ctx context.Context, input ProcessInput) (*Result, error) {
	if input.TicketID == "" || input.UserID == "" {
		return s.failure(apperror.Validation("ticketId y userId son obligatorios")), nil
	}
	if input.Method == "" {
		input.Method = model.MethodQRCode
	}
	if !input.Method.Valid() {
		return s.failure(apperror.Validation("Método de verificación inválido")), nil
	}

	if s.guard != nil {
		token, acquired, err := s.guard.Acquire(ctx, input.TicketID)
		switch {
		case err != nil:
			s.log.Warn("check-in guard unavailable", zap.String("ticket_id", input.TicketID), zap.Error(err))
		case !acquired:
			s.metrics.RecordCheckIn(string(apperror.CodeDuplicateCheckIn))
			return s.failure(errInProgress), nil
		default:
			defer s.releaseGuard(input.TicketID, token)
		}
	}

	now := s.now()
	var (
		ticket  *ticketmodel.Ticket
		event   *eventmodel.Event
		record  *model.CheckIn
		created bool
	)

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.loadTicket(ctx, input.TicketID, input.UserID)
		if err != nil {
			return err
		}

		event, created, err = s.resolveEvent(ctx, ticket, now)
		if err != nil {
			return err
		}
		if appErr := s.admission(event, now, true); appErr != nil {
			return appErr
		}

		record = &model.CheckIn{
			TicketID:           ticket.ID,
			EventID:            &event.ID,
			EventName:          event.Name,
			UserID:             input.UserID,
			CheckInTime:        now,
			VerificationMethod: input.Method,
			Status:             model.CheckInStatusSuccessful,
			Notes:              input.Notes,
		}
		record.SetLocation(input.Location)
		record.SetClientMeta(input.Meta)

		if err := s.checkIns.Create(ctx, record); err != nil {
			if errors.Is(err, model.ErrDuplicateCheckIn) {
				return errDuplicate
			}
			return err
		}
		if err := s.events.Admit(ctx, event.ID); err != nil {
			switch {
			case errors.Is(err, eventmodel.ErrCapacityExceeded):
				return s.eventFull(event)
			case errors.Is(err, eventmodel.ErrEventNotOpen):
				return errNotOpen
			}
			return err
		}
		if err := s.tickets.MarkUsed(ctx, ticket.ID); err != nil {
			if errors.Is(err, ticketmodel.ErrTicketAlreadyUsed) {
				return errAlreadyUsed
			}
			return err
		}
		return nil
	})

	if err != nil {
		// 事务内新建的活动已随回滚消失，审计记录不引用它
		if created {
			event = nil
		}
		if appErr, ok := apperror.As(err); ok {
			s.recordFailure(ctx, input, ticket, event, appErr, now)
			s.metrics.RecordCheckIn(string(appErr.Code))
			s.log.Info("check-in rejected",
				zap.String("ticket_id", input.TicketID),
				zap.String("user_id", input.UserID),
				zap.String("reason", string(appErr.Code)),
			)
			return s.failure(appErr), nil
		}

		s.recordFailure(ctx, input, ticket, event, apperror.Internal(), now)
		s.metrics.RecordCheckIn(string(apperror.CodeInternal))
		s.log.Error("check-in failed",
			zap.String("ticket_id", input.TicketID),
			zap.String("user_id", input.UserID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("process check-in: %w", err)
	}

	event.CurrentCount++
	s.invalidateStats(ctx, event.Name)
	s.metrics.RecordCheckIn("success")
	s.metrics.UpdateEventOccupancy(event.Name, event.CurrentCount, event.MaxCapacity)
	s.log.Info("check-in completed",
		zap.String("check_in_id", record.ID),
		zap.String("ticket_id", ticket.ID),
		zap.String("event_id", event.ID),
		zap.String("user_id", input.UserID),
		zap.Int("current_count", event.CurrentCount),
		zap.Int("max_capacity", event.MaxCapacity),
	)

	return &Result{
		Success: true,
		Message: msgSuccess,
		Data: &ResultData{
			CheckIn:   record,
			EventID:   event.ID,
			EventName: event.Name,
			Capacity:  event.Stats(),
		},
	}, nil
}

// ValidateCheckInEligibility 只读预检，不创建活动、不写任何记录，也不检查开放时间
func (s *checkInService) ValidateCheckInEligibility(ctx context.Context, ticketID, userID string) (*Eligibility, error) {
	now := s.now()

	ticket, err := s.loadTicket(ctx, ticketID, userID)
	if err != nil {
		return eligibilityOrError(err)
	}

	event, err := s.events.GetByName(ctx, ticket.EventName)
	switch {
	case errors.Is(err, eventmodel.ErrEventNotFound):
		event = s.seedEvent(ticket, now)
	case err != nil:
		return nil, err
	default:
		event.Status = event.StatusAt(now, s.opts.OngoingFor)
	}

	if appErr := s.admission(event, now, false); appErr != nil {
		return eligibilityOrError(appErr)
	}
	return &Eligibility{Eligible: true}, nil
}

// GetEventCapacityStats 活动不存在时返回 nil
func (s *checkInService) GetEventCapacityStats(ctx context.Context, eventName string) (*CapacityReport, error) {
	key := statsKey + eventName
	if s.cache != nil {
		var cached CapacityReport
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheLookup(statsKey, true)
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("capacity stats cache read failed", zap.String("event_name", eventName), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(statsKey, false)
	}

	event, err := s.events.GetByName(ctx, eventName)
	if err != nil {
		if errors.Is(err, eventmodel.ErrEventNotFound) {
			return nil, nil
		}
		return nil, err
	}

	byStatus, err := s.stats.CountByStatus(ctx, eventName)
	if err != nil {
		return nil, err
	}
	byHour, err := s.stats.CountByHour(ctx, eventName)
	if err != nil {
		return nil, err
	}

	report := &CapacityReport{
		Event:    event,
		Capacity: event.Stats(),
		CheckInStats: CheckInStats{
			ByStatus: byStatus,
			ByHour:   byHour,
		},
	}
	s.metrics.UpdateEventOccupancy(event.Name, event.CurrentCount, event.MaxCapacity)

	if s.cache != nil && s.opts.StatsCacheTTL > 0 {
		if err := s.cache.Set(ctx, key, report, s.opts.StatsCacheTTL); err != nil {
			s.log.Warn("capacity stats cache write failed", zap.String("event_name", eventName), zap.Error(err))
		}
	}
	return report, nil
}

func (s *checkInService) ListEventCheckIns(ctx context.Context, eventName string, page utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	records, total, err := s.checkIns.ListByEvent(ctx, eventName, offset, limit)
	if err != nil {
		return nil, err
	}
	return &utils.PageResult{List: records, Total: total, Page: page.Page, Limit: limit}, nil
}

// loadTicket 依次校验：门票存在、持有人、未使用、无成功检票记录
func (s *checkInService) loadTicket(ctx context.Context, ticketID, userID string) (*ticketmodel.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ticketmodel.ErrTicketNotFound) {
			return nil, errTicketNotFound
		}
		return nil, err
	}
	if !ticket.IsOwnedBy(userID) {
		return ticket, errNotOwner
	}
	if ticket.IsUsed {
		return ticket, errAlreadyUsed
	}

	has, err := s.checkIns.HasSuccessful(ctx, ticket.ID)
	if err != nil {
		return ticket, err
	}
	if has {
		return ticket, errDuplicate
	}
	return ticket, nil
}

// resolveEvent 按门票上的活动名查找活动，不存在则创建，并刷新按时间推算的状态
func (s *checkInService) resolveEvent(ctx context.Context, ticket *ticketmodel.Ticket, now time.Time) (*eventmodel.Event, bool, error) {
	created := false
	event, err := s.events.GetByName(ctx, ticket.EventName)
	if errors.Is(err, eventmodel.ErrEventNotFound) {
		seed := s.seedEvent(ticket, now)
		event, err = s.events.FindOrCreateByName(ctx, seed)
		// 并发创建时唯一索引冲突，返回的是已存在的活动
		if err == nil && event.ID == seed.ID {
			created = true
			s.log.Info("event created from ticket",
				zap.String("event_id", event.ID),
				zap.String("event_name", event.Name),
				zap.Int("max_capacity", event.MaxCapacity),
			)
		}
	}
	if err != nil {
		return nil, false, err
	}

	if status := event.StatusAt(now, s.opts.OngoingFor); status != event.Status {
		if err := s.events.UpdateStatus(ctx, event.ID, status); err != nil {
			return nil, created, err
		}
		event.Status = status
	}
	return event, created, nil
}

func (s *checkInService) seedEvent(ticket *ticketmodel.Ticket, now time.Time) *eventmodel.Event {
	capacity := ticket.Disp
	if capacity <= 0 {
		capacity = s.opts.DefaultCapacity
	}
	event := &eventmodel.Event{
		BaseModel:   basemodel.BaseModel{ID: basemodel.NewID()},
		Name:        ticket.EventName,
		Date:        ticket.EventDate,
		MaxCapacity: capacity,
		Price:       ticket.OriginalPrice,
		Status:      eventmodel.StatusUpcoming,
	}
	event.Status = event.StatusAt(now, s.opts.OngoingFor)
	return event
}

// admission 状态、容量、开放时间
func (s *checkInService) admission(event *eventmodel.Event, now time.Time, checkWindow bool) *apperror.Error {
	if !event.Status.AcceptsCheckIn() {
		return errNotOpen.WithDetail("status", string(event.Status))
	}
	if event.IsFull() {
		return s.eventFull(event)
	}
	if checkWindow {
		opensAt := event.Date.Add(-s.opts.EarlyWindow)
		if now.Before(opensAt) {
			return apperror.Conflict(apperror.CodeTooEarly, fmt.Sprintf(
				"El check-in estará disponible %d horas antes del evento", int(s.opts.EarlyWindow.Hours()),
			)).
				WithDetail("hoursUntilEvent", roundHours(event.Date.Sub(now))).
				WithDetail("hoursUntilOpen", roundHours(opensAt.Sub(now)))
		}
	}
	return nil
}

func (s *checkInService) eventFull(event *eventmodel.Event) *apperror.Error {
	return errEventFull.
		WithDetail("maxCapacity", event.MaxCapacity).
		WithDetail("currentCount", event.CurrentCount).
		WithDetail("available", event.Available())
}

// recordFailure 失败尝试的审计记录，写入失败只记日志
func (s *checkInService) recordFailure(ctx context.Context, input ProcessInput, ticket *ticketmodel.Ticket, event *eventmodel.Event, appErr *apperror.Error, now time.Time) {
	if ticket == nil {
		return
	}

	record := &model.CheckIn{
		TicketID:           ticket.ID,
		EventName:          ticket.EventName,
		UserID:             input.UserID,
		CheckInTime:        now,
		VerificationMethod: input.Method,
		Status:             model.CheckInStatusFailed,
		Notes:              string(appErr.Code),
		FailureReason:      appErr.Message,
	}
	if event != nil && event.ID != "" {
		eventID := event.ID
		record.EventID = &eventID
	}
	record.SetLocation(input.Location)
	record.SetClientMeta(input.Meta)

	if s.audit != nil {
		s.audit.Enqueue(record)
		return
	}
	if err := s.checkIns.Create(context.WithoutCancel(ctx), record); err != nil {
		s.log.Warn("failed to record check-in failure",
			zap.String("ticket_id", ticket.ID),
			zap.String("reason", string(appErr.Code)),
			zap.Error(err),
		)
	}
}

func (s *checkInService) invalidateStats(ctx context.Context, eventName string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsKey+eventName); err != nil {
		s.log.Warn("capacity stats cache invalidation failed", zap.String("event_name", eventName), zap.Error(err))
	}
}

func (s *checkInService) releaseGuard(ticketID, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.guard.Release(ctx, ticketID, token); err != nil {
		s.log.Warn("check-in guard release failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *checkInService) failure(appErr *apperror.Error) *Result {
	return &Result{Success: false, Message: appErr.Message, Error: appErr}
}

func eligibilityOrError(err error) (*Eligibility, error) {
	if appErr, ok := apperror.As(err); ok {
		return &Eligibility{Eligible: false, Reason: appErr.Message, Code: appErr.Code}, nil
	}
	return nil, err
}

func roundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*10) / 10
}
