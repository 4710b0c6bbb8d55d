package coupon

import (
	"event_ticketing/internal/domain/coupon/handler"
	"event_ticketing/internal/domain/coupon/repository"
	"event_ticketing/internal/domain/coupon/service"
	"event_ticketing/internal/domain/event"
	eventrepo "event_ticketing/internal/domain/event/repository"
	"event_ticketing/internal/domain/ticket"
	ticketrepo "event_ticketing/internal/domain/ticket/repository"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CouponModule 优惠券模块
type CouponModule struct{}

func init() {
	registry.Register(&CouponModule{})
}

func (m *CouponModule) Name() string {
	return "coupon"
}

func (m *CouponModule) Priority() int {
	return 50
}

func (m *CouponModule) Init(ctx *registry.ModuleContext) error {
	events, err := registry.Lookup[eventrepo.EventRepository](ctx, event.RepositoryKey)
	if err != nil {
		return err
	}
	tickets, err := registry.Lookup[ticketrepo.TicketRepository](ctx, ticket.RepositoryKey)
	if err != nil {
		return err
	}

	// 1. 依赖注入
	cRepo := repository.NewCouponRepository(ctx.DB)
	cService := service.NewCouponService(
		ctx.Transactor,
		cRepo,
		repository.NewStatsRepository(ctx.Reporting),
		tickets,
		events,
		ctx.Metrics,
		ctx.Logger,
	)
	cHandler := handler.NewCouponHandler(cService)

	// 2. 路由注册
	setupRoutes(ctx.Router, cHandler, ctx.Config.JWT.Secret)

	return nil
}

func setupRoutes(r *gin.RouterGroup, h *handler.CouponHandler, secret string) {
	g := r.Group("/coupons")
	g.Use(middleware.AuthMiddleware(secret))
	{
		g.POST("/validate", h.ValidateCoupon)
		g.POST("/apply", h.ApplyCoupon)
		g.GET("/event/:eventId", h.EventCoupons)
		g.GET("/event/:eventId/mine", h.MyEventCoupons)
	}

	// 券的创建和管理限主办方与管理员
	organizer := g.Group("")
	organizer.Use(middleware.OrganizerMiddleware())
	{
		organizer.POST("", h.CreateCoupon)
		organizer.GET("/:id/stats", h.Stats)
		organizer.POST("/:id/deactivate", h.Deactivate)
		organizer.DELETE("/:id", h.Delete)
	}
}
