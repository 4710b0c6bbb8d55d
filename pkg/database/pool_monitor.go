package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"event_ticketing/pkg/metrics"

	"go.uber.org/zap"
)

// PoolMonitor 定期把连接池状态写入 Prometheus
type PoolMonitor struct {
	db       *sql.DB
	metrics  *metrics.MetricsCollector
	log      *zap.Logger
	interval time.Duration

	// 等待次数持续增长时告警
	waitAlert int64

	mu       sync.RWMutex
	last     PoolSnapshot
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// PoolSnapshot 连接池快照
type PoolSnapshot struct {
	Timestamp       time.Time     `json:"timestamp"`
	OpenConnections int           `json:"openConnections"`
	InUse           int           `json:"inUse"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"waitCount"`
	WaitDuration    time.Duration `json:"waitDuration"`
}

// NewPoolMonitor 创建连接池监控器，调用 Start 后开始采集
func NewPoolMonitor(db *sql.DB, m *metrics.MetricsCollector, log *zap.Logger, interval time.Duration) *PoolMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PoolMonitor{
		db:        db,
		metrics:   m,
		log:       log,
		interval:  interval,
		waitAlert: 100,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start 后台采集
func (pm *PoolMonitor) Start() {
	go func() {
		defer close(pm.done)
		ticker := time.NewTicker(pm.interval)
		defer ticker.Stop()

		pm.Collect()
		for {
			select {
			case <-ticker.C:
				pm.Collect()
			case <-pm.stopCh:
				return
			}
		}
	}()
}

// Collect 采集一次
func (pm *PoolMonitor) Collect() PoolSnapshot {
	stats := pm.db.Stats()
	snapshot := PoolSnapshot{
		Timestamp:       time.Now(),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}

	pm.mu.Lock()
	prev := pm.last
	pm.last = snapshot
	pm.mu.Unlock()

	pm.metrics.UpdateDBConnections(snapshot.InUse, snapshot.Idle, snapshot.WaitCount)
	if !prev.Timestamp.IsZero() && snapshot.WaitCount-prev.WaitCount >= pm.waitAlert {
		pm.log.Warn("database pool saturated",
			zap.Int64("waits", snapshot.WaitCount-prev.WaitCount),
			zap.Int("in_use", snapshot.InUse),
			zap.Int("open", snapshot.OpenConnections),
		)
	}
	return snapshot
}

// Last 最近一次采集结果
func (pm *PoolMonitor) Last() PoolSnapshot {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.last
}

// HealthCheck 健康检查
func (pm *PoolMonitor) HealthCheck(ctx context.Context) error {
	if err := pm.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	return nil
}

// Stop 停止采集，可重复调用
func (pm *PoolMonitor) Stop() {
	pm.stopOnce.Do(func() {
		close(pm.stopCh)
	})
	<-pm.done
}
