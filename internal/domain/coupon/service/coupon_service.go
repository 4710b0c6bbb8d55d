package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"event_ticketing/internal/domain/coupon/model"
	"event_ticketing/internal/domain/coupon/repository"
	eventmodel "event_ticketing/internal/domain/event/model"
	ticketmodel "event_ticketing/internal/domain/ticket/model"
	"event_ticketing/pkg/apperror"
	"event_ticketing/pkg/database"
	"event_ticketing/pkg/metrics"
	basemodel "event_ticketing/pkg/model"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CouponService interface {
	CreateCoupon(ctx context.Context, input CreateInput) (*model.Coupon, error)
	ValidateCoupon(ctx context.Context, code, userID, eventID string, amount decimal.Decimal) (*ValidationResult, error)
	ApplyCoupon(ctx context.Context, input ApplyInput) (*ApplyResult, error)
	GetEventCoupons(ctx context.Context, eventID string, includeExpired bool) ([]model.Coupon, error)
	GetUserEventCoupons(ctx context.Context, userID, eventID string) ([]model.Coupon, error)
	GetCouponStats(ctx context.Context, couponID string) (*CouponStats, error)
	DeactivateCoupon(ctx context.Context, couponID string) error
	DeleteCoupon(ctx context.Context, couponID string) error
}

// TicketReader 资格校验读取用户持有的门票
type TicketReader interface {
	ListActiveForEvent(ctx context.Context, ownerID, eventID, eventName string) ([]ticketmodel.Ticket, error)
}

// EventReader 限定活动时读取活动名称
type EventReader interface {
	GetByID(ctx context.Context, id string) (*eventmodel.Event, error)
}

type CreateInput struct {
	Code              string
	EventID           string
	Title             string
	Description       string
	DiscountType      model.DiscountType
	DiscountValue     decimal.Decimal
	MinPurchaseAmount *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	ValidFrom         time.Time
	ValidUntil        time.Time
	MaxUses           int
	TargetAudience    model.Audience
	SpecificUserIDs   []string
	EarlyBirdDeadline *time.Time
	CreatedByID       string
}

type ApplyInput struct {
	Code           string
	UserID         string
	EventID        string
	OriginalAmount decimal.Decimal
	Meta           basemodel.ClientMeta
}

type ValidationResult struct {
	IsValid        bool            `json:"isValid"`
	Reason         string          `json:"reason,omitempty"`
	Code           apperror.Code   `json:"code,omitempty"`
	Coupon         *model.Coupon   `json:"coupon,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
}

type ApplyResult struct {
	Success         bool               `json:"success"`
	Message         string             `json:"message"`
	DiscountApplied decimal.Decimal    `json:"discountApplied"`
	FinalAmount     decimal.Decimal    `json:"finalAmount"`
	Usage           *model.CouponUsage `json:"usage,omitempty"`
	Error           *apperror.Error    `json:"error,omitempty"`
}

type CouponStats struct {
	Coupon        *model.Coupon            `json:"coupon"`
	RemainingUses int                      `json:"remainingUses"`
	Summary       *repository.UsageSummary `json:"summary"`
	Daily         []repository.DailyUsage  `json:"daily"`
}

const msgApplied = "Cupón aplicado exitosamente"

var (
	errCouponNotFound = apperror.NotFound(apperror.CodeCouponNotFound, "Cupón no encontrado o inactivo")
	errWrongEvent     = apperror.New(apperror.KindValidation, apperror.CodeWrongEvent, "El cupón no es válido para este evento")
	errExpired        = apperror.Conflict(apperror.CodeCouponExpired, "El cupón no está vigente")
	errExhausted      = apperror.Conflict(apperror.CodeUsesExhausted, "El cupón ha alcanzado su límite de usos")
	errNotEligible    = apperror.New(apperror.KindNotAuthorized, apperror.CodeNotEligible, "No cumples los requisitos para usar este cupón")
	errRedeemed       = apperror.Conflict(apperror.CodeAlreadyRedeemed, "Ya utilizaste este cupón")
	errBelowMinimum   = apperror.New(apperror.KindValidation, apperror.CodeBelowMinimum, "El monto no alcanza la compra mínima del cupón")
	errInUse          = apperror.Conflict(apperror.CodeCouponInUse, "No se puede eliminar un cupón que ya fue utilizado")
	errDuplicateCode  = apperror.Conflict(apperror.CodeDuplicateCode, "Ya existe un cupón con ese código")
)

var createErrors = map[error]string{
	model.ErrEmptyCode:           "El código es obligatorio",
	model.ErrInvalidDiscountType: "Tipo de descuento inválido",
	model.ErrNegativeDiscount:    "El descuento no puede ser negativo",
	model.ErrPercentageRange:     "El porcentaje debe estar entre 0 y 100",
	model.ErrInvalidWindow:       "La fecha de inicio debe ser anterior a la fecha de fin",
	model.ErrInvalidMaxUses:      "El número máximo de usos debe ser mayor que cero",
	model.ErrInvalidAudience:     "Público objetivo inválido",
	model.ErrMissingUsers:        "Debes indicar los usuarios del cupón",
}

type couponService struct {
	tx      database.Transactor
	repo    repository.CouponRepository
	stats   repository.StatsRepository
	tickets TicketReader
	events  EventReader
	metrics *metrics.MetricsCollector
	log     *zap.Logger
	now     func() time.Time

	// 已用尽的券码；使用次数只增不减，上限创建后不可改
	soldOut sync.Map
}

func NewCouponService(
	tx database.Transactor,
	repo repository.CouponRepository,
	stats repository.StatsRepository,
	tickets TicketReader,
	events EventReader,
	m *metrics.MetricsCollector,
	log *zap.Logger,
) CouponService {
	if log == nil {
		log = zap.NewNop()
	}
	return &couponService{
		tx:      tx,
		repo:    repo,
		stats:   stats,
		tickets: tickets,
		events:  events,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// CreateCoupon 创建优惠券
func (s *couponService) CreateCoupon(ctx context.Context, input CreateInput) (*model.Coupon, error) {
	coupon := &model.Coupon{
		Code:              repository.NormalizeCode(input.Code),
		Title:             input.Title,
		Description:       input.Description,
		DiscountType:      input.DiscountType,
		DiscountValue:     input.DiscountValue,
		ValidFrom:         input.ValidFrom,
		ValidUntil:        input.ValidUntil,
		MaxUses:           input.MaxUses,
		IsActive:          true,
		TargetAudience:    input.TargetAudience,
		SpecificUserIDs:   pq.StringArray(input.SpecificUserIDs),
		EarlyBirdDeadline: input.EarlyBirdDeadline,
		CreatedByID:       input.CreatedByID,
	}
	if coupon.TargetAudience == "" {
		coupon.TargetAudience = model.AudienceAllAttendees
	}
	if input.MinPurchaseAmount != nil {
		coupon.MinPurchaseAmount = decimal.NewNullDecimal(*input.MinPurchaseAmount)
	}
	if input.MaxDiscountAmount != nil {
		coupon.MaxDiscountAmount = decimal.NewNullDecimal(*input.MaxDiscountAmount)
	}

	if err := coupon.Check(); err != nil {
		if msg, ok := createErrors[err]; ok {
			return nil, apperror.Validation(msg)
		}
		return nil, err
	}
	if coupon.MinPurchaseAmount.Valid && coupon.MinPurchaseAmount.Decimal.IsNegative() {
		return nil, apperror.Validation("La compra mínima no puede ser negativa")
	}
	if coupon.MaxDiscountAmount.Valid && coupon.MaxDiscountAmount.Decimal.IsNegative() {
		return nil, apperror.Validation("El descuento máximo no puede ser negativo")
	}

	if input.EventID != "" {
		event, err := s.events.GetByID(ctx, input.EventID)
		if err != nil {
			if errors.Is(err, eventmodel.ErrEventNotFound) {
				return nil, apperror.NotFound(apperror.CodeEventNotFound, "Evento no encontrado")
			}
			return nil, err
		}
		coupon.EventID = &event.ID
		coupon.EventName = event.Name
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		if errors.Is(err, model.ErrDuplicateCode) {
			return nil, errDuplicateCode
		}
		return nil, err
	}

	s.log.Info("coupon created",
		zap.String("coupon_id", coupon.ID),
		zap.String("code", coupon.Code),
		zap.String("discount_type", string(coupon.DiscountType)),
		zap.String("created_by", coupon.CreatedByID),
	)
	return coupon, nil
}

// ValidateCoupon 只读校验，不占用次数
func (s *couponService) ValidateCoupon(ctx context.Context, code, userID, eventID string, amount decimal.Decimal) (*ValidationResult, error) {
	if amount.IsNegative() {
		return invalid(apperror.Validation("El monto no puede ser negativo")), nil
	}
	if _, ok := s.soldOut.Load(repository.NormalizeCode(code)); ok {
		return invalid(errExhausted), nil
	}

	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrCouponNotFound) {
			return invalid(errCouponNotFound), nil
		}
		return nil, err
	}

	discount, err := s.check(ctx, coupon, userID, eventID, amount)
	if err != nil {
		if appErr, ok := apperror.As(err); ok {
			return invalid(appErr), nil
		}
		return nil, err
	}
	return &ValidationResult{
		IsValid:        true,
		Coupon:         coupon,
		DiscountAmount: discount,
		FinalAmount:    amount.Sub(discount),
	}, nil
}

// ApplyCoupon 行锁下重新校验，次数自增与核销记录同一事务提交
func (s *couponService) ApplyCoupon(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	if input.OriginalAmount.IsNegative() {
		return s.rejected(input, apperror.Validation("El monto no puede ser negativo")), nil
	}
	if _, ok := s.soldOut.Load(repository.NormalizeCode(input.Code)); ok {
		return s.rejected(input, errExhausted), nil
	}

	var (
		coupon *model.Coupon
		usage  *model.CouponUsage
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		coupon, err = s.repo.GetByCodeForUpdate(ctx, input.Code)
		if err != nil {
			if errors.Is(err, model.ErrCouponNotFound) {
				return errCouponNotFound
			}
			return err
		}

		discount, err := s.check(ctx, coupon, input.UserID, input.EventID, input.OriginalAmount)
		if err != nil {
			return err
		}

		if err := s.repo.IncrementUses(ctx, coupon.ID); err != nil {
			if errors.Is(err, model.ErrUsesExhausted) {
				return errExhausted
			}
			return err
		}

		usage = &model.CouponUsage{
			CouponID:        coupon.ID,
			UserID:          input.UserID,
			EventID:         input.EventID,
			DiscountApplied: discount,
			OriginalAmount:  input.OriginalAmount,
			FinalAmount:     decimal.Max(decimal.Zero, input.OriginalAmount.Sub(discount)),
			UsedAt:          s.now(),
		}
		usage.SetClientMeta(input.Meta)
		if err := s.repo.CreateUsage(ctx, usage); err != nil {
			if errors.Is(err, model.ErrAlreadyRedeemed) {
				return errRedeemed
			}
			return err
		}
		return nil
	})

	if err != nil {
		appErr, ok := apperror.As(err)
		if !ok {
			s.metrics.RecordCouponRedemption(string(apperror.CodeInternal))
			s.log.Error("coupon redemption failed",
				zap.String("code", input.Code),
				zap.String("user_id", input.UserID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("apply coupon: %w", err)
		}
		if appErr.Code == apperror.CodeUsesExhausted && coupon != nil {
			s.soldOut.Store(coupon.Code, struct{}{})
		}
		return s.rejected(input, appErr), nil
	}

	if coupon.CurrentUses+1 >= coupon.MaxUses {
		s.soldOut.Store(coupon.Code, struct{}{})
	}
	s.metrics.RecordCouponRedemption("success")
	s.log.Info("coupon applied",
		zap.String("coupon_id", coupon.ID),
		zap.String("user_id", input.UserID),
		zap.String("event_id", input.EventID),
		zap.String("discount", usage.DiscountApplied.StringFixed(2)),
	)

	return &ApplyResult{
		Success:         true,
		Message:         msgApplied,
		DiscountApplied: usage.DiscountApplied,
		FinalAmount:     usage.FinalAmount,
		Usage:           usage,
	}, nil
}

func (s *couponService) GetEventCoupons(ctx context.Context, eventID string, includeExpired bool) ([]model.Coupon, error) {
	return s.repo.ListByEvent(ctx, eventID, includeExpired, s.now())
}

// GetUserEventCoupons 用户当前可用的券：已生效、有剩余次数、未用过且符合人群要求
func (s *couponService) GetUserEventCoupons(ctx context.Context, userID, eventID string) ([]model.Coupon, error) {
	now := s.now()
	coupons, err := s.repo.ListByEvent(ctx, eventID, false, now)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.Coupon, 0, len(coupons))
	ids := make([]string, 0, len(coupons))
	for _, c := range coupons {
		if c.IsWithinWindow(now) && c.HasUsesLeft() {
			candidates = append(candidates, c)
			ids = append(ids, c.ID)
		}
	}
	if len(candidates) == 0 {
		return []model.Coupon{}, nil
	}

	used, err := s.repo.UsedCouponIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	usedSet := make(map[string]struct{}, len(used))
	for _, id := range used {
		usedSet[id] = struct{}{}
	}

	tickets, err := s.tickets.ListActiveForEvent(ctx, userID, eventID, s.eventName(ctx, eventID, ""))
	if err != nil {
		return nil, err
	}

	available := make([]model.Coupon, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if _, ok := usedSet[c.ID]; ok {
			continue
		}
		if eligible(c, userID, tickets) {
			available = append(available, *c)
		}
	}
	return available, nil
}

func (s *couponService) GetCouponStats(ctx context.Context, couponID string) (*CouponStats, error) {
	coupon, err := s.coupon(ctx, couponID)
	if err != nil {
		return nil, err
	}
	summary, err := s.stats.Summary(ctx, couponID)
	if err != nil {
		return nil, err
	}
	daily, err := s.stats.Daily(ctx, couponID)
	if err != nil {
		return nil, err
	}
	return &CouponStats{
		Coupon:        coupon,
		RemainingUses: coupon.RemainingUses(),
		Summary:       summary,
		Daily:         daily,
	}, nil
}

func (s *couponService) DeactivateCoupon(ctx context.Context, couponID string) error {
	coupon, err := s.coupon(ctx, couponID)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, couponID); err != nil {
		if errors.Is(err, model.ErrCouponNotFound) {
			return errCouponNotFound
		}
		return err
	}
	s.soldOut.Delete(coupon.Code)
	s.log.Info("coupon deactivated", zap.String("coupon_id", couponID))
	return nil
}

// DeleteCoupon 已核销过的券不可删除
func (s *couponService) DeleteCoupon(ctx context.Context, couponID string) error {
	coupon, err := s.coupon(ctx, couponID)
	if err != nil {
		return err
	}
	if coupon.CurrentUses > 0 {
		return errInUse
	}
	if err := s.repo.Delete(ctx, couponID); err != nil {
		switch {
		case errors.Is(err, model.ErrCouponInUse):
			return errInUse
		case errors.Is(err, model.ErrCouponNotFound):
			return errCouponNotFound
		}
		return err
	}
	s.soldOut.Delete(coupon.Code)
	s.log.Info("coupon deleted", zap.String("coupon_id", couponID), zap.String("code", coupon.Code))
	return nil
}

// check 依次校验：启用、活动范围、有效期、剩余次数、用户资格、是否用过、最低消费，返回折扣额
func (s *couponService) check(ctx context.Context, coupon *model.Coupon, userID, eventID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !coupon.IsActive {
		return decimal.Zero, errCouponNotFound
	}
	if !coupon.AppliesTo(eventID) {
		return decimal.Zero, errWrongEvent
	}
	if !coupon.IsWithinWindow(s.now()) {
		return decimal.Zero, errExpired
	}
	if !coupon.HasUsesLeft() {
		return decimal.Zero, errExhausted
	}

	tickets, err := s.tickets.ListActiveForEvent(ctx, userID, eventID, s.eventName(ctx, eventID, coupon.EventName))
	if err != nil {
		return decimal.Zero, err
	}
	if !eligible(coupon, userID, tickets) {
		return decimal.Zero, errNotEligible
	}

	used, err := s.repo.HasUsage(ctx, coupon.ID, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if used {
		return decimal.Zero, errRedeemed
	}

	if !coupon.MeetsMinimum(amount) {
		return decimal.Zero, errBelowMinimum.WithDetail("minPurchaseAmount", coupon.MinPurchaseAmount.Decimal.StringFixed(2))
	}
	return coupon.CalculateDiscount(amount), nil
}

// eligible 必须持有该活动的有效门票，再按人群规则判断
func eligible(coupon *model.Coupon, userID string, tickets []ticketmodel.Ticket) bool {
	if len(tickets) == 0 {
		return false
	}
	switch coupon.TargetAudience {
	case model.AudienceAllAttendees:
		return true
	case model.AudienceVIPAttendees:
		for _, t := range tickets {
			if t.TicketType == ticketmodel.TypeVIP {
				return true
			}
		}
		return false
	case model.AudienceEarlyBirds:
		cutoff := coupon.EarlyBirdCutoff()
		for _, t := range tickets {
			if !t.CreatedAt.After(cutoff) {
				return true
			}
		}
		return false
	case model.AudienceSpecificUsers:
		return coupon.IsListedUser(userID)
	}
	return false
}

// eventName 门票可能只记录了活动名，按名称兜底匹配
func (s *couponService) eventName(ctx context.Context, eventID, known string) string {
	if known != "" || eventID == "" {
		return known
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if !errors.Is(err, eventmodel.ErrEventNotFound) {
			s.log.Warn("event lookup failed", zap.String("event_id", eventID), zap.Error(err))
		}
		return ""
	}
	return event.Name
}

func (s *couponService) coupon(ctx context.Context, id string) (*model.Coupon, error) {
	coupon, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrCouponNotFound) {
			return nil, errCouponNotFound
		}
		return nil, err
	}
	return coupon, nil
}

func (s *couponService) rejected(input ApplyInput, appErr *apperror.Error) *ApplyResult {
	s.metrics.RecordCouponRedemption(string(appErr.Code))
	s.log.Info("coupon rejected",
		zap.String("code", input.Code),
		zap.String("user_id", input.UserID),
		zap.String("reason", string(appErr.Code)),
	)
	return &ApplyResult{
		Success:         false,
		Message:         appErr.Message,
		DiscountApplied: decimal.Zero,
		FinalAmount:     input.OriginalAmount,
		Error:           appErr,
	}
}

func invalid(appErr *apperror.Error) *ValidationResult {
	return &ValidationResult{
		IsValid:        false,
		Reason:         appErr.Message,
		Code:           appErr.Code,
		DiscountAmount: decimal.Zero,
	}
}
