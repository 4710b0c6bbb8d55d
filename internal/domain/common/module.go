package common

import (
	"context"

	commonHandler "event_ticketing/internal/pkg/common"
	"event_ticketing/internal/pkg/registry"
	"event_ticketing/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CommonModule 通用功能模块
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	health := commonHandler.NewHealthHandler(0)

	if ctx.DB != nil {
		sqlDB, err := ctx.DB.DB()
		if err != nil {
			return err
		}
		monitor := database.NewPoolMonitor(sqlDB, ctx.Metrics, ctx.Logger, ctx.Config.Database.MonitorInterval)
		monitor.Start()
		ctx.OnShutdown(monitor.Stop)
		health.Register("database", monitor.HealthCheck)
	}
	if ctx.Redis != nil {
		rdb := ctx.Redis
		health.Register("redis", func(c context.Context) error {
			return rdb.Ping(c).Err()
		})
	}

	// 注册通用路由
	setupRoutes(ctx.Router, health)
	return nil
}

func setupRoutes(r *gin.RouterGroup, h *commonHandler.HealthHandler) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
