package registry

import (
	"fmt"
	"sort"

	"event_ticketing/internal/pkg/config"
	"event_ticketing/pkg/database"
	"event_ticketing/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	DB         *gorm.DB
	Reporting  *sqlx.DB
	Redis      *redis.Client
	Router     *gin.RouterGroup
	Transactor database.Transactor
	Logger     *zap.Logger
	Metrics    *metrics.MetricsCollector
	Config     *config.Config

	// 跨模块共享的服务，由先初始化的模块写入
	Services map[string]interface{}

	closers []func()
}

// Provide 暴露服务给后续模块
func (c *ModuleContext) Provide(name string, svc interface{}) {
	if c.Services == nil {
		c.Services = make(map[string]interface{})
	}
	c.Services[name] = svc
}

// Lookup 获取其它模块暴露的服务
func Lookup[T any](c *ModuleContext, name string) (T, error) {
	var zero T
	raw, ok := c.Services[name]
	if !ok {
		return zero, fmt.Errorf("service %q not provided", name)
	}
	svc, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has unexpected type %T", name, raw)
	}
	return svc, nil
}

// OnShutdown 注册停机回调，按注册的逆序执行
func (c *ModuleContext) OnShutdown(fn func()) {
	c.closers = append(c.closers, fn)
}

// Shutdown 执行停机回调
func (c *ModuleContext) Shutdown() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	// 例如：event 模块需要先于 checkin 模块初始化
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// Sorted 按优先级排序，优先级相同按名称
func Sorted() []Module {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() != modules[j].Priority() {
			return modules[i].Priority() < modules[j].Priority()
		}
		return modules[i].Name() < modules[j].Name()
	})
	return modules
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	for _, module := range Sorted() {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
		if ctx.Logger != nil {
			ctx.Logger.Info("module initialized", zap.String("module", module.Name()), zap.Int("priority", module.Priority()))
		}
	}
	return nil
}
