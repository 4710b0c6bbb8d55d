package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "event_ticketing/internal/domain/checkin"
	_ "event_ticketing/internal/domain/common"
	_ "event_ticketing/internal/domain/coupon"
	_ "event_ticketing/internal/domain/event"
	_ "event_ticketing/internal/domain/ticket"
	_ "event_ticketing/internal/domain/transfer"
	_ "event_ticketing/internal/domain/user"
	"event_ticketing/internal/pkg/config"
	"event_ticketing/internal/pkg/middleware"
	"event_ticketing/internal/pkg/registry"
	"event_ticketing/pkg/database"
	"event_ticketing/pkg/logger"
	"event_ticketing/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	cfg := config.GlobalConfig

	if err := logger.InitLogger(cfg.App.Env, cfg.Log.Level); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.Log

	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug, lg)
	if err != nil {
		lg.Fatal("database unavailable", zap.Error(err))
	}
	reporting, err := database.InitReportingDB(db)
	if err != nil {
		lg.Fatal("reporting handle unavailable", zap.Error(err))
	}
	rdb, err := database.InitRedis(cfg.Redis)
	if err != nil {
		lg.Fatal("redis unavailable", zap.Error(err))
	}
	defer rdb.Close()

	collector := metrics.GetGlobalCollector()

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware(collector))

	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	r.Use(middleware.RateLimitMiddleware(limiter))

	modCtx := &registry.ModuleContext{
		DB:         db,
		Reporting:  reporting,
		Redis:      rdb,
		Router:     &r.RouterGroup,
		Transactor: database.NewTransactor(db),
		Logger:     lg,
		Metrics:    collector,
		Config:     &cfg,
	}
	if err := registry.InitModules(modCtx); err != nil {
		lg.Fatal("module init failed", zap.Error(err))
	}

	// 定期清理长时间不活跃的限流器
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup(3 * time.Minute)
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("server started", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}

	// 先停请求，再停后台任务，保证队列里的审计记录写完
	stopCleanup()
	modCtx.Shutdown()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	lg.Info("server exited")
}
