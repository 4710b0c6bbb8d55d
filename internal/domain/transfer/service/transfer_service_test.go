package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ticketmodel "event_ticketing/internal/domain/ticket/model"
	"event_ticketing/internal/domain/transfer/model"
	"event_ticketing/internal/domain/transfer/repository"
	usermodel "event_ticketing/internal/domain/user/model"
	"event_ticketing/pkg/apperror"
	basemodel "event_ticketing/pkg/model"
	"event_ticketing/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type txKey struct{}

// fakeTickets 内存门票表，配合 fakeTx 回滚
type fakeTickets struct {
	mu      sync.Mutex
	tickets map[string]ticketmodel.Ticket
}

func (f *fakeTickets) GetByID(ctx context.Context, id string) (*ticketmodel.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, ticketmodel.ErrTicketNotFound
	}
	return &t, nil
}

func (f *fakeTickets) TransferOwner(ctx context.Context, id, from, to string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok || t.CurrentOwnerID != from || t.IsUsed {
		return ticketmodel.ErrOwnerMismatch
	}
	t.TransferTo(to, at)
	f.tickets[id] = t
	return nil
}

func (f *fakeTickets) get(id string) ticketmodel.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[id]
}

// fakeTx 事务串行执行，出错时恢复门票快照
type fakeTx struct {
	mu        sync.Mutex
	tickets   *fakeTickets
	rollbacks int
}

func (f *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tickets.mu.Lock()
	snap := make(map[string]ticketmodel.Ticket, len(f.tickets.tickets))
	for k, v := range f.tickets.tickets {
		snap[k] = v
	}
	f.tickets.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		f.tickets.mu.Lock()
		f.tickets.tickets = snap
		f.tickets.mu.Unlock()
		f.rollbacks++
		return err
	}
	return nil
}

type fakeUsers map[string]*usermodel.User

func (f fakeUsers) GetUser(ctx context.Context, id string) (*usermodel.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperror.NotFound(apperror.CodeUserNotFound, "Usuario no encontrado")
}

func (f fakeUsers) GetUserByEmail(ctx context.Context, email string) (*usermodel.User, error) {
	for _, u := range f {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperror.NotFound(apperror.CodeUserNotFound, "Usuario no encontrado")
}

type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) Create(ctx context.Context, transfer *model.Transfer) error {
	args := m.Called(ctx, transfer)
	if args.Error(0) == nil && transfer.ID == "" {
		transfer.ID = basemodel.NewID()
	}
	return args.Error(0)
}

func (m *MockTransferRepository) ListByTicket(ctx context.Context, ticketID string) ([]model.Transfer, error) {
	args := m.Called(ctx, ticketID)
	return args.Get(0).([]model.Transfer), args.Error(1)
}

func (m *MockTransferRepository) ListByUser(ctx context.Context, userID string) ([]model.Transfer, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Transfer), args.Error(1)
}

func (m *MockTransferRepository) List(ctx context.Context, filter model.Filter, offset, limit int) ([]model.Transfer, int64, error) {
	args := m.Called(ctx, filter, offset, limit)
	return args.Get(0).([]model.Transfer), args.Get(1).(int64), args.Error(2)
}

type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) CountByType(ctx context.Context, from, to *time.Time) ([]repository.TypeStats, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]repository.TypeStats), args.Error(1)
}

var transferNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type transferFixture struct {
	tickets *fakeTickets
	tx      *fakeTx
	repo    *MockTransferRepository
	stats   *MockStatsRepository
	svc     TransferService
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	tickets := &fakeTickets{tickets: map[string]ticketmodel.Ticket{}}
	for _, tk := range []ticketmodel.Ticket{
		{EventName: "Concierto", EventDate: transferNow.Add(72 * time.Hour), CurrentOwnerID: "alice", PurchasedByID: "alice", Status: ticketmodel.StatusActive, Price: decimal.NewFromInt(80)},
		{EventName: "Concierto", EventDate: transferNow.Add(72 * time.Hour), CurrentOwnerID: "bob", PurchasedByID: "bob", Status: ticketmodel.StatusActive, Price: decimal.NewFromInt(120), IsForSale: true},
		{EventName: "Concierto", CurrentOwnerID: "alice", Status: ticketmodel.StatusUsed, IsUsed: true},
	} {
		tk := tk
		switch {
		case tk.IsUsed:
			tk.ID = "tkt-used"
		case tk.IsForSale:
			tk.ID = "tkt-resale"
		default:
			tk.ID = "tkt-1"
		}
		tickets.tickets[tk.ID] = tk
	}

	users := fakeUsers{}
	for _, u := range []usermodel.User{
		{Email: "alice@example.com", Name: "Alice", Role: usermodel.RoleUser},
		{Email: "bob@example.com", Name: "Bob", Role: usermodel.RoleUser},
		{Email: "carol@example.com", Name: "Carol", Role: usermodel.RoleUser},
		{Email: "root@example.com", Name: "Root", Role: usermodel.RoleAdmin},
	} {
		u := u
		u.ID = map[string]string{"Alice": "alice", "Bob": "bob", "Carol": "carol", "Root": "root"}[u.Name]
		users[u.ID] = &u
	}

	tx := &fakeTx{tickets: tickets}
	repo := new(MockTransferRepository)
	stats := new(MockStatsRepository)
	svc := NewTransferService(tx, repo, stats, tickets, users, nil, zap.NewNop())
	svc.(*transferService).now = func() time.Time { return transferNow }

	return &transferFixture{tickets: tickets, tx: tx, repo: repo, stats: stats, svc: svc}
}

func TestDirectTransfer(t *testing.T) {
	f := newTransferFixture(t)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Transfer")).Return(nil).Once()

	transfer, err := f.svc.DirectTransfer(context.Background(), DirectInput{
		TicketID:   "tkt-1",
		FromUserID: "alice",
		ToEmail:    " carol@example.com ",
		Notes:      "regalo",
		Meta:       basemodel.ClientMeta{IPAddress: "10.1.1.1"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.TypeDirectTransfer, transfer.TransferType)
	assert.Equal(t, "alice@example.com", transfer.PreviousOwnerEmail)
	assert.Equal(t, "Carol", transfer.NewOwnerName)
	assert.Equal(t, "Concierto", transfer.EventName)
	assert.Equal(t, "10.1.1.1", transfer.ClientIP)
	assert.Nil(t, transfer.TransferPrice)
	assert.Equal(t, model.StatusCompleted, transfer.Status)

	ticket := f.tickets.get("tkt-1")
	assert.Equal(t, transfer.NewOwnerID, ticket.CurrentOwnerID)
	assert.Equal(t, 1, ticket.TransferCount)
	require.NotNil(t, ticket.LastTransferDate)
	assert.Equal(t, transferNow, *ticket.LastTransferDate)
	f.repo.AssertExpectations(t)
}

func TestDirectTransferRejections(t *testing.T) {
	tests := []struct {
		name     string
		input    DirectInput
		wantCode apperror.Code
	}{
		{"not owner", DirectInput{TicketID: "tkt-1", FromUserID: "bob", ToUserID: "carol"}, apperror.CodeNotAuthorized},
		{"used ticket", DirectInput{TicketID: "tkt-used", FromUserID: "alice", ToUserID: "carol"}, apperror.CodeAlreadyUsed},
		{"same owner", DirectInput{TicketID: "tkt-1", FromUserID: "alice", ToUserID: "alice"}, apperror.CodeSameOwner},
		{"unknown recipient", DirectInput{TicketID: "tkt-1", FromUserID: "alice", ToEmail: "nobody@example.com"}, apperror.CodeUserNotFound},
		{"missing recipient", DirectInput{TicketID: "tkt-1", FromUserID: "alice"}, apperror.CodeValidation},
		{"missing ticket", DirectInput{TicketID: "nope", FromUserID: "alice", ToUserID: "carol"}, apperror.CodeTicketNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTransferFixture(t)

			_, err := f.svc.DirectTransfer(context.Background(), tt.input)

			appErr, ok := apperror.As(err)
			require.True(t, ok, "expected app error, got %v", err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, "alice", f.tickets.get("tkt-1").CurrentOwnerID)
			f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestTransferRollsBackWhenAuditWriteFails(t *testing.T) {
	f := newTransferFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := f.svc.DirectTransfer(context.Background(), DirectInput{TicketID: "tkt-1", FromUserID: "alice", ToUserID: "carol"})

	require.Error(t, err)
	assert.Equal(t, 1, f.tx.rollbacks)
	ticket := f.tickets.get("tkt-1")
	assert.Equal(t, "alice", ticket.CurrentOwnerID)
	assert.Equal(t, 0, ticket.TransferCount)
}

func TestPurchaseResale(t *testing.T) {
	f := newTransferFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	transfer, err := f.svc.PurchaseResale(context.Background(), "tkt-resale", "carol", basemodel.ClientMeta{})
	require.NoError(t, err)

	assert.Equal(t, model.TypeResalePurchase, transfer.TransferType)
	assert.Equal(t, "bob", transfer.PreviousOwnerID)
	require.NotNil(t, transfer.TransferPrice)
	assert.True(t, decimal.NewFromInt(120).Equal(*transfer.TransferPrice))

	ticket := f.tickets.get("tkt-resale")
	assert.Equal(t, "carol", ticket.CurrentOwnerID)
	assert.False(t, ticket.IsForSale)

	// 转售成交后门票已下架
	_, err = f.svc.PurchaseResale(context.Background(), "tkt-resale", "alice", basemodel.ClientMeta{})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNotForSale, appErr.Code)
}

func TestPurchaseResaleOwnTicket(t *testing.T) {
	f := newTransferFixture(t)

	_, err := f.svc.PurchaseResale(context.Background(), "tkt-resale", "bob", basemodel.ClientMeta{})

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeSameOwner, appErr.Code)
}

func TestConcurrentResaleOnlyOneBuyerWins(t *testing.T) {
	f := newTransferFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
	)
	for _, buyer := range []string{"alice", "carol"} {
		wg.Add(1)
		go func(buyer string) {
			defer wg.Done()
			if _, err := f.svc.PurchaseResale(context.Background(), "tkt-resale", buyer, basemodel.ClientMeta{}); err == nil {
				mu.Lock()
				wins = append(wins, buyer)
				mu.Unlock()
			}
		}(buyer)
	}
	wg.Wait()

	require.Len(t, wins, 1)
	assert.Equal(t, wins[0], f.tickets.get("tkt-resale").CurrentOwnerID)
	f.repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestAdminTransfer(t *testing.T) {
	t.Run("admin moves ticket", func(t *testing.T) {
		f := newTransferFixture(t)
		f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		transfer, err := f.svc.AdminTransfer(context.Background(), AdminInput{TicketID: "tkt-1", AdminID: "root", ToUserID: "bob"})
		require.NoError(t, err)
		assert.Equal(t, model.TypeAdminTransfer, transfer.TransferType)
		assert.Contains(t, transfer.Notes, "root@example.com")
		assert.Equal(t, "bob", f.tickets.get("tkt-1").CurrentOwnerID)
	})

	t.Run("non admin rejected", func(t *testing.T) {
		f := newTransferFixture(t)

		_, err := f.svc.AdminTransfer(context.Background(), AdminInput{TicketID: "tkt-1", AdminID: "carol", ToUserID: "bob"})
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.KindNotAuthorized, appErr.Kind)
	})
}

func TestRecordTransfer(t *testing.T) {
	f := newTransferFixture(t)
	price := decimal.NewFromInt(50)
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(tr *model.Transfer) bool {
		return tr.PreviousOwnerName == "Alice" && tr.NewOwnerEmail == "bob@example.com" && tr.TransferPrice.Equal(price)
	})).Return(nil)

	transfer, err := f.svc.RecordTransfer(context.Background(), RecordInput{
		TicketID:        "tkt-1",
		PreviousOwnerID: "alice",
		NewOwnerID:      "bob",
		Type:            model.TypeResalePurchase,
		Price:           &price,
	})
	require.NoError(t, err)
	assert.Equal(t, transferNow, transfer.TransferDate)

	_, err = f.svc.RecordTransfer(context.Background(), RecordInput{TicketID: "tkt-1", PreviousOwnerID: "alice", NewOwnerID: "ghost", Type: model.TypeDirectTransfer})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUserNotFound, appErr.Code)

	_, err = f.svc.RecordTransfer(context.Background(), RecordInput{TicketID: "tkt-1", PreviousOwnerID: "alice", NewOwnerID: "bob", Type: "gift"})
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestGetAllTransfers(t *testing.T) {
	f := newTransferFixture(t)
	from := transferNow.Add(-24 * time.Hour)
	filter := model.Filter{From: &from, Type: model.TypeDirectTransfer, UserID: "alice"}
	f.repo.On("List", mock.Anything, filter, 20, 20).Return([]model.Transfer{{TicketID: "tkt-1"}}, int64(21), nil)

	page, err := f.svc.GetAllTransfers(context.Background(), filter, utils.Pagination{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(21), page.Total)
	assert.Equal(t, 2, page.Page)

	to := from.Add(-time.Hour)
	_, err = f.svc.GetAllTransfers(context.Background(), model.Filter{From: &from, To: &to}, utils.Pagination{})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestGetTransferStats(t *testing.T) {
	f := newTransferFixture(t)
	f.stats.On("CountByType", mock.Anything, (*time.Time)(nil), (*time.Time)(nil)).Return([]repository.TypeStats{
		{Type: model.TypeDirectTransfer, Count: 4, TotalValue: decimal.Zero, AverageValue: decimal.Zero},
		{Type: model.TypeResalePurchase, Count: 2, TotalValue: decimal.NewFromInt(250), AverageValue: decimal.NewFromInt(125)},
	}, nil)

	stats, err := f.svc.GetTransferStats(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.TotalTransfers)
	assert.True(t, decimal.NewFromInt(250).Equal(stats.TotalResaleValue))
	assert.Len(t, stats.ByType, 2)
}

func TestTransferHistory(t *testing.T) {
	f := newTransferFixture(t)
	f.repo.On("ListByTicket", mock.Anything, "tkt-1").Return([]model.Transfer{{TicketID: "tkt-1"}}, nil)
	f.repo.On("ListByUser", mock.Anything, "alice").Return([]model.Transfer{}, nil)

	byTicket, err := f.svc.GetTicketTransferHistory(context.Background(), "tkt-1")
	require.NoError(t, err)
	assert.Len(t, byTicket, 1)

	byUser, err := f.svc.GetUserTransferHistory(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, byUser)
}
