package service

import (
	"context"
	"testing"
	"time"

	"event_ticketing/internal/domain/event/model"
	"event_ticketing/pkg/apperror"
	"event_ticketing/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEventRepository 模拟活动仓库
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *model.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventRepository) GetByName(ctx context.Context, name string) (*model.Event, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventRepository) FindOrCreateByName(ctx context.Context, seed *model.Event) (*model.Event, error) {
	args := m.Called(ctx, seed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *MockEventRepository) List(ctx context.Context, offset, limit int) ([]model.Event, int64, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]model.Event), args.Get(1).(int64), args.Error(2)
}

func (m *MockEventRepository) Admit(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventRepository) UpdateStatus(ctx context.Context, id string, status model.EventStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func newTestService(repo *MockEventRepository) *eventService {
	s := NewEventService(repo, 4*time.Hour, zap.NewNop()).(*eventService)
	s.now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("validates input", func(t *testing.T) {
		s := newTestService(new(MockEventRepository))
		_, err := s.CreateEvent(ctx, CreateEventInput{Name: " ", MaxCapacity: 10, Date: time.Now()})
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.KindValidation, appErr.Kind)

		_, err = s.CreateEvent(ctx, CreateEventInput{Name: "Concierto", MaxCapacity: 0, Date: time.Now()})
		assert.Error(t, err)
	})

	t.Run("creates upcoming event", func(t *testing.T) {
		repo := new(MockEventRepository)
		s := newTestService(repo)
		repo.On("Create", ctx, mock.MatchedBy(func(e *model.Event) bool {
			return e.Name == "Concierto" && e.Status == model.StatusUpcoming && *e.OrganizerID == "org-1"
		})).Return(nil)

		event, err := s.CreateEvent(ctx, CreateEventInput{
			Name:        "Concierto",
			Date:        time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC),
			MaxCapacity: 100,
			Price:       decimal.NewFromInt(50),
			OrganizerID: "org-1",
		})
		require.NoError(t, err)
		assert.Equal(t, 100, event.MaxCapacity)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		repo := new(MockEventRepository)
		s := newTestService(repo)
		repo.On("Create", ctx, mock.Anything).Return(model.ErrEventExists)

		_, err := s.CreateEvent(ctx, CreateEventInput{Name: "Concierto", Date: time.Now(), MaxCapacity: 5})
		assert.ErrorIs(t, err, apperror.Conflict(apperror.CodeEventExists, ""))
	})
}

func TestCancelEvent(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEventRepository)
	s := newTestService(repo)

	repo.On("GetByID", ctx, "evt-1").Return(&model.Event{Name: "Concierto", Status: model.StatusUpcoming}, nil)
	repo.On("UpdateStatus", ctx, "evt-1", model.StatusCancelled).Return(nil)
	repo.On("GetByID", ctx, "missing").Return(nil, model.ErrEventNotFound)

	event, err := s.CancelEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, event.Status)

	_, err = s.CancelEvent(ctx, "missing")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeEventNotFound, appErr.Code)
	repo.AssertExpectations(t)
}

func TestListEvents(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEventRepository)
	s := newTestService(repo)

	repo.On("List", ctx, 20, 20).Return([]model.Event{{Name: "A"}}, int64(21), nil)

	result, err := s.ListEvents(ctx, utils.Pagination{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(21), result.Total)
	assert.Equal(t, 2, result.Page)
}
