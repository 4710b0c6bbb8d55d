package user

import (
	"event_ticketing/internal/domain/user/handler"
	"event_ticketing/internal/domain/user/repository"
	"event_ticketing/internal/domain/user/service"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/internal/pkg/registry"
	"event_ticketing/pkg/cache"

	"github.com/gin-gonic/gin"
)

const ServiceKey = "user.service"

// UserModule 用户模块
type UserModule struct{}

func init() {
	// 自动注册模块
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	// 转让审计依赖用户目录，优先初始化
	return 1
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	userRepo := repository.NewUserRepository(ctx.DB)
	userService := service.NewCachedUserService(
		service.NewUserService(userRepo),
		cache.NewRedisCache(ctx.Redis, "ticketing:"),
		ctx.Metrics,
		ctx.Logger,
	)
	userHandler := handler.NewUserHandler(userService)

	ctx.Provide(ServiceKey, userService)

	// 2. 路由注册
	setupRoutes(ctx.Router, userHandler, ctx.Config.JWT.Secret)

	return nil
}

func setupRoutes(r *gin.RouterGroup, h *handler.UserHandler, secret string) {
	userGroup := r.Group("/users")
	userGroup.Use(middleware.AuthMiddleware(secret))
	{
		userGroup.GET("/me", h.GetMe)
	}
}
