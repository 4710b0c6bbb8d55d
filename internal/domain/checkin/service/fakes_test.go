package service

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"event_ticketing/internal/domain/checkin/model"
	"event_ticketing/internal/domain/checkin/repository"
	eventmodel "event_ticketing/internal/domain/event/model"
	ticketmodel "event_ticketing/internal/domain/ticket/model"
	basemodel "event_ticketing/pkg/model"

	"github.com/stretchr/testify/mock"
)

type inTxKey struct{}

var (
	errStoreDown    = errors.New("store unavailable")
	errValueTooLong = errors.New("value too long for type character varying(255)")
)

// memStore 内存版门票/活动/检票存储，事务串行执行，失败时整体恢复快照
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	tickets  map[string]ticketmodel.Ticket
	events   map[string]eventmodel.Event
	checkIns []model.CheckIn

	// createRace 在 FindOrCreateByName 前插入的同名活动，模拟并发创建
	createRace *eventmodel.Event

	failMarkUsed      bool
	failHasSuccessful bool
	failCreate        bool
}

func newMemStore() *memStore {
	return &memStore{
		tickets: make(map[string]ticketmodel.Ticket),
		events:  make(map[string]eventmodel.Event),
	}
}

type snapshot struct {
	tickets  map[string]ticketmodel.Ticket
	events   map[string]eventmodel.Event
	checkIns []model.CheckIn
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		tickets:  make(map[string]ticketmodel.Ticket, len(s.tickets)),
		events:   make(map[string]eventmodel.Event, len(s.events)),
		checkIns: append([]model.CheckIn(nil), s.checkIns...),
	}
	for k, v := range s.tickets {
		snap.tickets[k] = v
	}
	for k, v := range s.events {
		snap.events[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = snap.tickets
	s.events = snap.events
	s.checkIns = snap.checkIns
}

func (s *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) addTicket(id, owner, eventName string, disp int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := ticketmodel.Ticket{
		EventName:      eventName,
		CurrentOwnerID: owner,
		PurchasedByID:  owner,
		Status:         ticketmodel.StatusActive,
		Disp:           disp,
	}
	t.ID = id
	s.tickets[id] = t
}

func (s *memStore) addEvent(e eventmodel.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = basemodel.NewID()
	}
	s.events[e.ID] = e
}

func (s *memStore) ticket(id string) ticketmodel.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets[id]
}

func (s *memStore) eventByName(name string) (eventmodel.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Name == name {
			return e, true
		}
	}
	return eventmodel.Event{}, false
}

func (s *memStore) records(status model.CheckInStatus) []model.CheckIn {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CheckIn
	for _, c := range s.checkIns {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out
}

// TicketStore

func (s *memStore) GetByID(ctx context.Context, id string) (*ticketmodel.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, ticketmodel.ErrTicketNotFound
	}
	return &t, nil
}

func (s *memStore) MarkUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMarkUsed {
		return errStoreDown
	}
	t, ok := s.tickets[id]
	if !ok || t.IsUsed {
		return ticketmodel.ErrTicketAlreadyUsed
	}
	t.IsUsed = true
	t.Status = ticketmodel.StatusUsed
	t.IsForSale = false
	s.tickets[id] = t
	return nil
}

// EventStore

func (s *memStore) GetByName(ctx context.Context, name string) (*eventmodel.Event, error) {
	if e, ok := s.eventByName(name); ok {
		return &e, nil
	}
	return nil, eventmodel.ErrEventNotFound
}

func (s *memStore) FindOrCreateByName(ctx context.Context, seed *eventmodel.Event) (*eventmodel.Event, error) {
	if s.createRace != nil {
		s.addEvent(*s.createRace)
		s.createRace = nil
	}
	if e, ok := s.eventByName(seed.Name); ok {
		return &e, nil
	}
	s.addEvent(*seed)
	return s.GetByName(ctx, seed.Name)
}

func (s *memStore) Admit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return eventmodel.ErrEventNotFound
	}
	if !e.Status.AcceptsCheckIn() {
		return eventmodel.ErrEventNotOpen
	}
	if e.CurrentCount >= e.MaxCapacity {
		return eventmodel.ErrCapacityExceeded
	}
	e.CurrentCount++
	s.events[id] = e
	return nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id string, status eventmodel.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return eventmodel.ErrEventNotFound
	}
	e.Status = status
	s.events[id] = e
	return nil
}

// CheckInRepository

func (s *memStore) Create(ctx context.Context, record *model.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errStoreDown
	}
	if utf8.RuneCountInString(record.UserAgent) > basemodel.MaxUserAgentLen ||
		utf8.RuneCountInString(record.ClientIP) > basemodel.MaxClientIPLen {
		return errValueTooLong
	}
	if record.Status == model.CheckInStatusSuccessful {
		for _, c := range s.checkIns {
			if c.TicketID == record.TicketID && c.Status == model.CheckInStatusSuccessful {
				return model.ErrDuplicateCheckIn
			}
		}
	}
	if record.ID == "" {
		record.ID = basemodel.NewID()
	}
	s.checkIns = append(s.checkIns, *record)
	return nil
}

func (s *memStore) HasSuccessful(ctx context.Context, ticketID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHasSuccessful {
		return false, errStoreDown
	}
	for _, c := range s.checkIns {
		if c.TicketID == ticketID && c.Status == model.CheckInStatusSuccessful {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListByEvent(ctx context.Context, eventName string, offset, limit int) ([]model.CheckIn, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CheckIn
	for _, c := range s.checkIns {
		if c.EventName == eventName {
			out = append(out, c)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []model.CheckIn{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

// MockAuditQueue 模拟审计队列
type MockAuditQueue struct {
	mock.Mock
}

func (m *MockAuditQueue) Enqueue(record *model.CheckIn) bool {
	return m.Called(record).Bool(0)
}

// MockStatsRepository 模拟统计仓库
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) CountByStatus(ctx context.Context, eventName string) ([]repository.StatusCount, error) {
	args := m.Called(ctx, eventName)
	return args.Get(0).([]repository.StatusCount), args.Error(1)
}

func (m *MockStatsRepository) CountByHour(ctx context.Context, eventName string) ([]repository.HourlyCount, error) {
	args := m.Called(ctx, eventName)
	return args.Get(0).([]repository.HourlyCount), args.Error(1)
}

// fakeGuard 固定返回值的扫码锁
type fakeGuard struct {
	acquire  bool
	err      error
	released []string
	mu       sync.Mutex
}

func (g *fakeGuard) Acquire(ctx context.Context, ticketID string) (string, bool, error) {
	if g.err != nil || !g.acquire {
		return "", false, g.err
	}
	return "tok-" + ticketID, true, nil
}

func (g *fakeGuard) Release(ctx context.Context, ticketID, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = append(g.released, ticketID+"/"+token)
	return nil
}
