package checkin

import (
	"event_ticketing/internal/domain/checkin/handler"
	"event_ticketing/internal/domain/checkin/repository"
	"event_ticketing/internal/domain/checkin/service"
	"event_ticketing/internal/domain/event"
	eventrepo "event_ticketing/internal/domain/event/repository"
	"event_ticketing/internal/domain/ticket"
	ticketrepo "event_ticketing/internal/domain/ticket/repository"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/internal/pkg/registry"
	"event_ticketing/internal/pkg/worker"
	"event_ticketing/pkg/cache"

	"github.com/gin-gonic/gin"
)

// CheckInModule 检票模块
type CheckInModule struct{}

func init() {
	registry.Register(&CheckInModule{})
}

func (m *CheckInModule) Name() string {
	return "checkin"
}

func (m *CheckInModule) Priority() int {
	return 40
}

func (m *CheckInModule) Init(ctx *registry.ModuleContext) error {
	events, err := registry.Lookup[eventrepo.EventRepository](ctx, event.RepositoryKey)
	if err != nil {
		return err
	}
	tickets, err := registry.Lookup[ticketrepo.TicketRepository](ctx, ticket.RepositoryKey)
	if err != nil {
		return err
	}
	cfg := ctx.Config

	// 1. 依赖注入
	checkInRepo := repository.NewCheckInRepository(ctx.DB)

	// 失败尝试的审计记录走异步队列
	pool := worker.NewWorkerPool(checkInRepo, cfg.Worker.AuditWorkers, cfg.Worker.AuditBuffer, cfg.Worker.AuditMaxRetry, ctx.Logger, ctx.Metrics)
	pool.Start()
	ctx.OnShutdown(pool.Stop)

	deps := service.Dependencies{
		Transactor: ctx.Transactor,
		Tickets:    tickets,
		Events:     events,
		CheckIns:   checkInRepo,
		Stats:      repository.NewStatsRepository(ctx.Reporting),
		Audit:      pool,
		Metrics:    ctx.Metrics,
		Logger:     ctx.Logger,
	}
	if ctx.Redis != nil {
		deps.Guard = repository.NewRedisScanGuard(ctx.Redis, cfg.CheckIn.GuardTTL)
		deps.Cache = cache.NewRedisCache(ctx.Redis, "ticketing:")
	}

	cService := service.NewCheckInService(deps, service.Options{
		EarlyWindow:     cfg.CheckIn.EarlyWindow(),
		OngoingFor:      cfg.Event.OngoingDuration(),
		DefaultCapacity: cfg.CheckIn.DefaultCapacity,
		StatsCacheTTL:   cfg.CheckIn.StatsCacheTTL,
	})
	cHandler := handler.NewCheckInHandler(cService)

	// 2. 路由注册
	setupRoutes(ctx.Router, cHandler, cfg.JWT.Secret)

	return nil
}

func setupRoutes(r *gin.RouterGroup, h *handler.CheckInHandler, secret string) {
	g := r.Group("/checkins")
	g.Use(middleware.AuthMiddleware(secret))
	{
		g.POST("", h.CheckIn)
		g.GET("/eligibility/:ticketId", h.Eligibility)
	}

	organizer := g.Group("")
	organizer.Use(middleware.OrganizerMiddleware())
	{
		organizer.GET("", h.ListCheckIns)
		organizer.GET("/stats", h.CapacityStats)
	}
}
