package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"event_ticketing/internal/domain/checkin/model"
	"event_ticketing/internal/domain/checkin/service"
	"event_ticketing/pkg/apperror"
	"event_ticketing/pkg/response"
	"event_ticketing/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCheckInService struct {
	mock.Mock
}

func (m *MockCheckInService) ProcessCheckIn(ctx context.Context, input service.ProcessInput) (*service.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Result), args.Error(1)
}

func (m *MockCheckInService) ValidateCheckInEligibility(ctx context.Context, ticketID, userID string) (*service.Eligibility, error) {
	args := m.Called(ctx, ticketID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Eligibility), args.Error(1)
}

func (m *MockCheckInService) GetEventCapacityStats(ctx context.Context, eventName string) (*service.CapacityReport, error) {
	args := m.Called(ctx, eventName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CapacityReport), args.Error(1)
}

func (m *MockCheckInService) ListEventCheckIns(ctx context.Context, eventName string, page utils.Pagination) (*utils.PageResult, error) {
	args := m.Called(ctx, eventName, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*utils.PageResult), args.Error(1)
}

func setupRouter(svc service.CheckInService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "user-u")
		c.Next()
	})
	h := NewCheckInHandler(svc)
	r.POST("/checkins", h.CheckIn)
	r.GET("/checkins/eligibility/:ticketId", h.Eligibility)
	r.GET("/checkins/stats", h.CapacityStats)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCheckInHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		result     *service.Result
		wantStatus int
		wantCode   int
	}{
		{
			name:       "success",
			body:       `{"ticketId":"tkt-1","verificationMethod":"qr_code"}`,
			result:     &service.Result{Success: true, Message: "ok", Data: &service.ResultData{EventName: "Concert"}},
			wantStatus: http.StatusOK,
			wantCode:   response.CodeSuccess,
		},
		{
			name: "event full",
			body: `{"ticketId":"tkt-1"}`,
			result: &service.Result{
				Error: apperror.Conflict(apperror.CodeEventFull, "El evento ha alcanzado su capacidad máxima"),
			},
			wantStatus: http.StatusConflict,
			wantCode:   response.ErrEventFull,
		},
		{
			name:       "missing ticket id",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrInvalidParam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCheckInService)
			if tt.result != nil {
				svc.On("ProcessCheckIn", mock.Anything, mock.MatchedBy(func(in service.ProcessInput) bool {
					return in.TicketID == "tkt-1" && in.UserID == "user-u"
				})).Return(tt.result, nil)
			}

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/checkins", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			setupRouter(svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode(t, w).Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestCheckInHandlerPassesMethod(t *testing.T) {
	svc := new(MockCheckInService)
	svc.On("ProcessCheckIn", mock.Anything, mock.MatchedBy(func(in service.ProcessInput) bool {
		return in.Method == model.MethodManual && in.Location != nil && in.Location.Latitude == 1.5
	})).Return(&service.Result{Success: true}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkins",
		bytes.NewBufferString(`{"ticketId":"tkt-1","verificationMethod":"manual","location":{"latitude":1.5,"longitude":2}}`))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestEligibilityHandler(t *testing.T) {
	svc := new(MockCheckInService)
	svc.On("ValidateCheckInEligibility", mock.Anything, "tkt-9", "user-u").
		Return(&service.Eligibility{Eligible: false, Code: apperror.CodeAlreadyUsed, Reason: "Este boleto ya fue utilizado"}, nil)

	w := httptest.NewRecorder()
	setupRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkins/eligibility/tkt-9", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, false, data["eligible"])
	assert.Equal(t, string(apperror.CodeAlreadyUsed), data["code"])
}

func TestCapacityStatsHandler(t *testing.T) {
	t.Run("requires event", func(t *testing.T) {
		w := httptest.NewRecorder()
		setupRouter(new(MockCheckInService)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkins/stats", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown event", func(t *testing.T) {
		svc := new(MockCheckInService)
		svc.On("GetEventCapacityStats", mock.Anything, "Nope").Return(nil, nil)

		w := httptest.NewRecorder()
		setupRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkins/stats?event=Nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, response.ErrEventNotFound, decode(t, w).Code)
	})
}
