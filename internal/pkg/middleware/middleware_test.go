package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"event_ticketing/internal/domain/user/model"
	"event_ticketing/pkg/metrics"
	"event_ticketing/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(testSecret)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := CurrentUserID(c)
		c.String(http.StatusOK, id)
	})
	r.GET("/me", handlers...)
	return r
}

func bearer(t *testing.T, userID string, role int) string {
	token, _, err := utils.GenerateToken(testSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthRouter()

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Token abc")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", bearer(t, "user-42", model.RoleUser))
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-42", w.Body.String())
	})
}

func TestRoleMiddleware(t *testing.T) {
	admin := newAuthRouter(AdminMiddleware())
	organizer := newAuthRouter(OrganizerMiddleware())

	tests := []struct {
		name   string
		router *gin.Engine
		role   int
		want   int
	}{
		{"admin allowed", admin, model.RoleAdmin, http.StatusOK},
		{"user rejected by admin", admin, model.RoleUser, http.StatusForbidden},
		{"organizer allowed", organizer, model.RoleOrganizer, http.StatusOK},
		{"admin allowed as organizer", organizer, model.RoleAdmin, http.StatusOK},
		{"user rejected by organizer", organizer, model.RoleUser, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", bearer(t, "u", tt.role))
			tt.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(NewIPRateLimiter(1, 2)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestIPRateLimiterCleanup(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	l.GetLimiter("10.0.0.1")
	assert.Equal(t, 0, l.Cleanup(time.Hour))
	assert.Equal(t, 1, l.Cleanup(0))
}

func TestTraceAndMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewMetricsCollector(reg)

	r := gin.New()
	r.Use(TraceMiddleware(), MetricsMiddleware(collector))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, ClientMeta(c).UserAgent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Trace-ID", "trace-1")
	req.Header.Set("User-Agent", "scanner/1.0")
	r.ServeHTTP(w, req)

	assert.Equal(t, "trace-1", w.Header().Get("X-Trace-ID"))
	assert.Equal(t, "scanner/1.0", w.Body.String())
	count, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
