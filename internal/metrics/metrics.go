package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chargehive"

// 调用结果标签
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics 站点服务的 prometheus 指标
// 所有方法对 nil 接收者安全，测试中可以不注册指标
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	UpstreamRequests  *prometheus.CounterVec
	UpstreamDuration  *prometheus.HistogramVec
	BreakerState      *prometheus.GaugeVec
	StoreDuration     *prometheus.HistogramVec
	StationsCreated   prometheus.Counter
	ApprovalDecisions *prometheus.CounterVec
	WSClients         prometheus.Gauge
}

// New 创建并注册指标，reg 为 nil 时使用默认注册表
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Collaborator calls by service and outcome",
		}, []string{"service", "outcome"}),
		UpstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Collaborator call latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"service"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_breaker_state",
			Help:      "Circuit breaker state per collaborator (0=closed, 1=half-open, 2=open)",
		}, []string{"service"}),
		StoreDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Station store operation latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation", "result"}),
		StationsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_created_total",
			Help:      "Total number of stations created",
		}),
		ApprovalDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Approval decisions recorded by action",
		}, []string{"action"}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients",
		}),
	}
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, route, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// ObserveUpstream 记录一次协作服务调用
func (m *Metrics) ObserveUpstream(service, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(service, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

// SetBreakerState 记录熔断器状态
func (m *Metrics) SetBreakerState(service string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(service).Set(state)
}

// ObserveStore 记录一次存储操作，传入操作开始时间
func (m *Metrics) ObserveStore(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.StoreDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

// IncStationsCreated 站点创建成功
func (m *Metrics) IncStationsCreated() {
	if m == nil {
		return
	}
	m.StationsCreated.Inc()
}

// IncApprovalDecision 记录审批动作
func (m *Metrics) IncApprovalDecision(action string) {
	if m == nil {
		return
	}
	m.ApprovalDecisions.WithLabelValues(action).Inc()
}

// SetWSClients 当前 websocket 连接数
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}
