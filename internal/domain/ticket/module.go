package ticket

import (
	"event_ticketing/internal/domain/event"
	eventrepo "event_ticketing/internal/domain/event/repository"
	"event_ticketing/internal/domain/ticket/handler"
	"event_ticketing/internal/domain/ticket/repository"
	"event_ticketing/internal/domain/ticket/service"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

const RepositoryKey = "ticket.repository"

// TicketModule 门票模块
type TicketModule struct{}

func init() {
	registry.Register(&TicketModule{})
}

func (m *TicketModule) Name() string {
	return "ticket"
}

func (m *TicketModule) Priority() int {
	return 20
}

func (m *TicketModule) Init(ctx *registry.ModuleContext) error {
	events, err := registry.Lookup[eventrepo.EventRepository](ctx, event.RepositoryKey)
	if err != nil {
		return err
	}

	// 1. 依赖注入
	tRepo := repository.NewTicketRepository(ctx.DB)
	tService := service.NewTicketService(tRepo, events, ctx.Logger)
	tHandler := handler.NewTicketHandler(tService)

	ctx.Provide(RepositoryKey, tRepo)

	// 2. 路由注册
	setupRoutes(ctx.Router, tHandler, ctx.Config.JWT.Secret)

	return nil
}

func setupRoutes(r *gin.RouterGroup, h *handler.TicketHandler, secret string) {
	g := r.Group("/tickets")
	g.Use(middleware.AuthMiddleware(secret))
	{
		g.POST("", h.Purchase)
		g.GET("/mine", h.ListMine)
		g.GET("/resale", h.ListResale)
		g.GET("/:id", h.GetTicket)
		g.POST("/:id/sale", h.PutForSale)
		g.DELETE("/:id/sale", h.RemoveFromSale)
	}
}
