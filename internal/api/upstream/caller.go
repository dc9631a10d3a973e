package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/langchou/chargehive/internal/metrics"
)

// Outcome 协作服务调用结果
type Outcome int

const (
	// Found 对方确认资源存在
	Found Outcome = iota
	// NotFound 对方返回 4xx
	NotFound
	// Unavailable 网络错误、超时、5xx、熔断打开或响应无法解析
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// 调用错误
var (
	ErrNotFound    = errors.New("upstream resource not found")
	ErrUnavailable = errors.New("upstream unavailable")
)

// Classify 把调用错误归类为三种结果
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Found
	case errors.Is(err, ErrNotFound):
		return NotFound
	default:
		return Unavailable
	}
}

// Options 调用参数
type Options struct {
	Timeout          time.Duration // 单次调用超时
	FailureThreshold uint32        // 连续失败多少次打开熔断
	OpenTimeout      time.Duration // 熔断打开后多久进入半开
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		Timeout:          3 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Caller 对单个协作服务的 HTTP 调用
// 每次调用只尝试一次，不重试
type Caller struct {
	name       string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewCaller 创建调用器，name 为逻辑服务名
func NewCaller(name, baseURL string, opts Options, logger *zap.Logger, m *metrics.Metrics) *Caller {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = def.FailureThreshold
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = def.OpenTimeout
	}

	c := &Caller{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: opts.Timeout,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger:  logger.With(zap.String("service", name)),
		metrics: m,
	}

	threshold := opts.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// 4xx 说明对方正常工作
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			c.metrics.SetBreakerState(name, float64(to))
		},
	})
	c.metrics.SetBreakerState(name, float64(gobreaker.StateClosed))

	return c
}

// Name 逻辑服务名
func (c *Caller) Name() string {
	return c.name
}

// GetJSON 请求 path 并把 2xx 响应解析到 out
// 返回的错误总是包装 ErrNotFound 或 ErrUnavailable
func (c *Caller) GetJSON(ctx context.Context, path string, out any) error {
	start := time.Now()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, path, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %s circuit breaker: %v", ErrUnavailable, c.name, err)
	}

	outcome := Classify(err)
	c.metrics.ObserveUpstream(c.name, outcome.String(), start)
	if outcome == Unavailable {
		c.logger.Warn("Upstream call failed", zap.String("path", path), zap.Error(err))
	}
	return err
}

func (c *Caller) do(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %s returned status %d", ErrNotFound, c.name, resp.StatusCode)
	default:
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, c.name, resp.StatusCode)
	}
}
