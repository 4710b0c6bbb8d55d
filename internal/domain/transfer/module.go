package transfer

import (
	"event_ticketing/internal/domain/ticket"
	ticketrepo "event_ticketing/internal/domain/ticket/repository"
	"event_ticketing/internal/domain/transfer/handler"
	"event_ticketing/internal/domain/transfer/repository"
	"event_ticketing/internal/domain/transfer/service"
	"event_ticketing/internal/domain/user"
	userservice "event_ticketing/internal/domain/user/service"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// TransferModule 转让模块
type TransferModule struct{}

func init() {
	registry.Register(&TransferModule{})
}

func (m *TransferModule) Name() string {
	return "transfer"
}

func (m *TransferModule) Priority() int {
	return 30
}

func (m *TransferModule) Init(ctx *registry.ModuleContext) error {
	tickets, err := registry.Lookup[ticketrepo.TicketRepository](ctx, ticket.RepositoryKey)
	if err != nil {
		return err
	}
	users, err := registry.Lookup[userservice.UserService](ctx, user.ServiceKey)
	if err != nil {
		return err
	}

	// 1. 依赖注入
	tRepo := repository.NewTransferRepository(ctx.DB)
	tService := service.NewTransferService(
		ctx.Transactor,
		tRepo,
		repository.NewStatsRepository(ctx.Reporting),
		tickets,
		users,
		ctx.Metrics,
		ctx.Logger,
	)
	tHandler := handler.NewTransferHandler(tService)

	// 2. 路由注册
	setupRoutes(ctx.Router, tHandler, ctx.Config.JWT.Secret)

	return nil
}

func setupRoutes(r *gin.RouterGroup, h *handler.TransferHandler, secret string) {
	g := r.Group("/transfers")
	g.Use(middleware.AuthMiddleware(secret))
	{
		g.POST("/direct", h.DirectTransfer)
		g.POST("/resale/:ticketId", h.PurchaseResale)
		g.GET("/ticket/:ticketId", h.TicketHistory)
		g.GET("/mine", h.MyHistory)
	}

	admin := g.Group("")
	admin.Use(middleware.AdminMiddleware())
	{
		admin.POST("/admin", h.AdminTransfer)
		admin.GET("", h.ListTransfers)
		admin.GET("/stats", h.Stats)
	}
}
