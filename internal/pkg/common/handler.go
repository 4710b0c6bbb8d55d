package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"event_ticketing/pkg/response"

	"github.com/gin-gonic/gin"
)

// Checker 依赖健康检查
type Checker func(ctx context.Context) error

// HealthHandler 并发检查各依赖，任一失败返回 503
type HealthHandler struct {
	checkers map[string]Checker
	timeout  time.Duration
}

func NewHealthHandler(timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checkers: make(map[string]Checker), timeout: timeout}
}

// Register 注册检查项，需在路由注册前完成
func (h *HealthHandler) Register(name string, check Checker) {
	h.checkers[name] = check
}

type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health 健康检查
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		healthy = true
		report  = HealthReport{Status: "ok", Checks: make(map[string]string, len(names))}
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, check Checker) {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = status
			if status != "ok" {
				healthy = false
			}
		}(name, h.checkers[name])
	}
	wg.Wait()

	if !healthy {
		report.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code:    response.ErrServerInternal,
			Message: "unhealthy",
			Data:    report,
		})
		return
	}
	response.Success(c, report)
}
