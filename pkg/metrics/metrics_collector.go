package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
// 所有 Record/Update 方法对 nil 接收者安全，单元测试可直接传 nil
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 数据库指标
	dbConnectionsActive prometheus.Gauge
	dbConnectionsIdle   prometheus.Gauge
	dbWaitCount         prometheus.Gauge

	// 缓存指标
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	// 业务指标
	checkInAttempts   *prometheus.CounterVec
	eventOccupancy    *prometheus.GaugeVec
	couponRedemptions *prometheus.CounterVec
	ticketTransfers   *prometheus.CounterVec
	auditDroppedTotal prometheus.Counter
}

// NewMetricsCollector 创建指标收集器并注册到 reg
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(reg)
	return &MetricsCollector{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		dbConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_active",
				Help: "Number of active database connections",
			},
		),

		dbConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		dbWaitCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),

		cacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_prefix"},
		),

		cacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_prefix"},
		),

		checkInAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkin_attempts_total",
				Help: "Check-in attempts by outcome",
			},
			[]string{"result"},
		),

		eventOccupancy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "event_occupancy_ratio",
				Help: "Admitted attendees over maximum capacity",
			},
			[]string{"event"},
		),

		couponRedemptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coupon_redemptions_total",
				Help: "Coupon redemption attempts by outcome",
			},
			[]string{"result"},
		),

		ticketTransfers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_transfers_total",
				Help: "Ticket ownership changes by transfer type",
			},
			[]string{"type"},
		),

		auditDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkin_audit_dropped_total",
				Help: "Failed check-in audit records that could not be persisted",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, getStatusCategory(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// UpdateDBConnections 更新数据库连接指标
func (m *MetricsCollector) UpdateDBConnections(active, idle int, waitCount int64) {
	if m == nil {
		return
	}
	m.dbConnectionsActive.Set(float64(active))
	m.dbConnectionsIdle.Set(float64(idle))
	m.dbWaitCount.Set(float64(waitCount))
}

// RecordCacheLookup 记录缓存命中情况
func (m *MetricsCollector) RecordCacheLookup(keyPrefix string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHitsTotal.WithLabelValues(keyPrefix).Inc()
	} else {
		m.cacheMissesTotal.WithLabelValues(keyPrefix).Inc()
	}
}

// RecordCheckIn result 为成功或失败原因码
func (m *MetricsCollector) RecordCheckIn(result string) {
	if m == nil {
		return
	}
	m.checkInAttempts.WithLabelValues(result).Inc()
}

// UpdateEventOccupancy 更新活动入场率
func (m *MetricsCollector) UpdateEventOccupancy(event string, current, maximum int) {
	if m == nil || maximum <= 0 {
		return
	}
	m.eventOccupancy.WithLabelValues(event).Set(float64(current) / float64(maximum))
}

func (m *MetricsCollector) RecordCouponRedemption(result string) {
	if m == nil {
		return
	}
	m.couponRedemptions.WithLabelValues(result).Inc()
}

func (m *MetricsCollector) RecordTransfer(transferType string) {
	if m == nil {
		return
	}
	m.ticketTransfers.WithLabelValues(transferType).Inc()
}

func (m *MetricsCollector) RecordAuditDropped() {
	if m == nil {
		return
	}
	m.auditDroppedTotal.Inc()
}

// getStatusCategory 获取状态分类
func getStatusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

var (
	globalCollector *MetricsCollector
	globalOnce      sync.Once
)

// GetGlobalCollector 获取注册在默认 Registry 上的全局收集器
func GetGlobalCollector() *MetricsCollector {
	globalOnce.Do(func() {
		globalCollector = NewMetricsCollector(prometheus.DefaultRegisterer)
	})
	return globalCollector
}
