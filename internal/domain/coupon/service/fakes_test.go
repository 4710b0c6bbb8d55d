package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"event_ticketing/internal/domain/coupon/model"
	"event_ticketing/internal/domain/coupon/repository"
	eventmodel "event_ticketing/internal/domain/event/model"
	ticketmodel "event_ticketing/internal/domain/ticket/model"
	basemodel "event_ticketing/pkg/model"

	"github.com/stretchr/testify/mock"
)

type inTxKey struct{}

var errStoreDown = errors.New("store unavailable")

// memCoupons 内存版优惠券仓库，事务串行执行，失败时恢复快照
type memCoupons struct {
	mu      sync.Mutex
	txMu    sync.Mutex
	coupons map[string]model.Coupon
	usages  []model.CouponUsage

	failCreateUsage bool
}

func newMemCoupons() *memCoupons {
	return &memCoupons{coupons: make(map[string]model.Coupon)}
}

func (m *memCoupons) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	coupons := make(map[string]model.Coupon, len(m.coupons))
	for k, v := range m.coupons {
		coupons[k] = v
	}
	usages := append([]model.CouponUsage(nil), m.usages...)
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.coupons, m.usages = coupons, usages
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memCoupons) put(c model.Coupon) model.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = basemodel.NewID()
	}
	c.Code = repository.NormalizeCode(c.Code)
	m.coupons[c.ID] = c
	return c
}

func (m *memCoupons) get(id string) model.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coupons[id]
}

func (m *memCoupons) usageCount(couponID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.usages {
		if u.CouponID == couponID {
			n++
		}
	}
	return n
}

func (m *memCoupons) Create(ctx context.Context, coupon *model.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coupon.Code = repository.NormalizeCode(coupon.Code)
	for _, c := range m.coupons {
		if c.Code == coupon.Code {
			return model.ErrDuplicateCode
		}
	}
	if coupon.ID == "" {
		coupon.ID = basemodel.NewID()
	}
	m.coupons[coupon.ID] = *coupon
	return nil
}

func (m *memCoupons) GetByID(ctx context.Context, id string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return nil, model.ErrCouponNotFound
	}
	return &c, nil
}

func (m *memCoupons) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = repository.NormalizeCode(code)
	for _, c := range m.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, model.ErrCouponNotFound
}

func (m *memCoupons) GetByCodeForUpdate(ctx context.Context, code string) (*model.Coupon, error) {
	return m.GetByCode(ctx, code)
}

func (m *memCoupons) ListByEvent(ctx context.Context, eventID string, includeExpired bool, now time.Time) ([]model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Coupon
	for _, c := range m.coupons {
		if !c.IsActive || !c.AppliesTo(eventID) {
			continue
		}
		if !includeExpired && c.ValidUntil.Before(now) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memCoupons) IncrementUses(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok || !c.IsActive || c.CurrentUses >= c.MaxUses {
		return model.ErrUsesExhausted
	}
	c.CurrentUses++
	m.coupons[id] = c
	return nil
}

func (m *memCoupons) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return model.ErrCouponNotFound
	}
	c.IsActive = false
	m.coupons[id] = c
	return nil
}

func (m *memCoupons) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return model.ErrCouponNotFound
	}
	if c.CurrentUses > 0 {
		return model.ErrCouponInUse
	}
	delete(m.coupons, id)
	return nil
}

func (m *memCoupons) CreateUsage(ctx context.Context, usage *model.CouponUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateUsage {
		return errStoreDown
	}
	for _, u := range m.usages {
		if u.CouponID == usage.CouponID && u.UserID == usage.UserID {
			return model.ErrAlreadyRedeemed
		}
	}
	if usage.ID == "" {
		usage.ID = basemodel.NewID()
	}
	m.usages = append(m.usages, *usage)
	return nil
}

func (m *memCoupons) HasUsage(ctx context.Context, couponID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usages {
		if u.CouponID == couponID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCoupons) UsedCouponIDs(ctx context.Context, userID string, couponIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, u := range m.usages {
		if u.UserID != userID {
			continue
		}
		for _, id := range couponIDs {
			if id == u.CouponID {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// fakeTickets 按持有人返回有效门票
type fakeTickets map[string][]ticketmodel.Ticket

func (f fakeTickets) ListActiveForEvent(ctx context.Context, ownerID, eventID, eventName string) ([]ticketmodel.Ticket, error) {
	var out []ticketmodel.Ticket
	for _, t := range f[ownerID] {
		if t.EventID == eventID || (eventName != "" && t.EventName == eventName) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeEvents map[string]eventmodel.Event

func (f fakeEvents) GetByID(ctx context.Context, id string) (*eventmodel.Event, error) {
	e, ok := f[id]
	if !ok {
		return nil, eventmodel.ErrEventNotFound
	}
	return &e, nil
}

type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) Summary(ctx context.Context, couponID string) (*repository.UsageSummary, error) {
	args := m.Called(ctx, couponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.UsageSummary), args.Error(1)
}

func (m *MockStatsRepository) Daily(ctx context.Context, couponID string) ([]repository.DailyUsage, error) {
	args := m.Called(ctx, couponID)
	return args.Get(0).([]repository.DailyUsage), args.Error(1)
}
