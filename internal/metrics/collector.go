// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record 方法对 nil 接收者安全。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 生成指标
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationAttempts *prometheus.HistogramVec
	attemptsTotal      *prometheus.CounterVec
	violationsTotal    *prometheus.CounterVec

	// 后端指标
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	breakerState           *prometheus.GaugeVec
	breakerTransitions     *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg；reg 为 nil 时使用默认注册表
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 生成指标
	c.generationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of artifact generations by terminal status",
		},
		[]string{"status"}, // succeeded, exhausted, failed
	)

	c.generationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end artifact generation duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	c.generationAttempts = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_attempts",
			Help:      "Number of attempts consumed per generation",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 10},
		},
		[]string{"status"},
	)

	c.attemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempt_results_total",
			Help:      "Total number of generation attempts by result",
		},
		[]string{"result"}, // valid, invalid, transient_error, permanent_error, timeout
	)

	c.violationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_violations_total",
			Help:      "Total number of contract violations by field and kind",
		},
		[]string{"field", "kind"},
	)

	// 后端指标
	c.backendRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of generation backend requests",
		},
		[]string{"provider", "status"},
	)

	c.backendRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Generation backend request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	c.breakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Backend circuit breaker state (0 closed, 1 half_open, 2 open)",
		},
		[]string{"provider"},
	)

	c.breakerTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Backend circuit breaker state transitions",
		},
		[]string{"provider", "to"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🍸 生成指标记录
// =============================================================================

// RecordGeneration 记录一次生成的终态、耗时与消耗的尝试次数
func (c *Collector) RecordGeneration(status string, attempts int, duration time.Duration) {
	if c == nil {
		return
	}
	c.generationsTotal.WithLabelValues(status).Inc()
	c.generationDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.generationAttempts.WithLabelValues(status).Observe(float64(attempts))
}

// RecordAttempt 记录单次尝试的结果
func (c *Collector) RecordAttempt(result string) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(result).Inc()
}

// RecordViolation 记录一条契约违规
func (c *Collector) RecordViolation(field, kind string) {
	if c == nil {
		return
	}
	c.violationsTotal.WithLabelValues(field, kind).Inc()
}

// =============================================================================
// 🤖 后端指标记录
// =============================================================================

// RecordBackendRequest 记录一次后端请求
func (c *Collector) RecordBackendRequest(provider, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.backendRequestsTotal.WithLabelValues(provider, status).Inc()
	c.backendRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// breakerStateValues 熔断器状态到 gauge 值
var breakerStateValues = map[string]float64{"closed": 0, "half_open": 1, "open": 2}

// RecordBreakerTransition 记录熔断器状态迁移，未知状态只计数不更新 gauge
func (c *Collector) RecordBreakerTransition(provider, to string) {
	if c == nil {
		return
	}
	c.breakerTransitions.WithLabelValues(provider, to).Inc()
	if v, ok := breakerStateValues[to]; ok {
		c.breakerState.WithLabelValues(provider).Set(v)
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusClass 将 HTTP 状态码归类为 2xx/3xx/4xx/5xx
func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return strconv.Itoa(code)
	}
}
