package event

import (
	"event_ticketing/internal/domain/event/handler"
	"event_ticketing/internal/domain/event/repository"
	"event_ticketing/internal/domain/event/service"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

const RepositoryKey = "event.repository"

// EventModule 活动模块
type EventModule struct{}

func init() {
	registry.Register(&EventModule{})
}

func (m *EventModule) Name() string {
	return "event"
}

func (m *EventModule) Priority() int {
	return 10
}

func (m *EventModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	eRepo := repository.NewEventRepository(ctx.DB)
	eService := service.NewEventService(eRepo, ctx.Config.Event.OngoingDuration(), ctx.Logger)
	eHandler := handler.NewEventHandler(eService)

	ctx.Provide(RepositoryKey, eRepo)

	// 2. 路由注册
	setupRoutes(ctx.Router, eHandler, ctx.Config.JWT.Secret)

	return nil
}

func setupRoutes(r *gin.RouterGroup, h *handler.EventHandler, secret string) {
	g := r.Group("/events")

	g.GET("", h.ListEvents)
	g.GET("/:id", h.GetEvent)

	organizer := g.Group("")
	organizer.Use(middleware.AuthMiddleware(secret), middleware.OrganizerMiddleware())
	{
		organizer.POST("", h.CreateEvent)
		organizer.POST("/:id/cancel", h.CancelEvent)
	}
}
