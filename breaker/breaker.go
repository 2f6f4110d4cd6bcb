// Package breaker 提供熔断器，隔离计数器后端的故障。
//
// 基于 gobreaker，按键维护独立的熔断器：
//   - 失败率超过阈值后熔断，直接返回 ErrOpenState，不再访问后端
//   - Timeout 后进入半开状态放行少量探测请求，成功则恢复
//
// 基本使用：
//
//	brk, _ := breaker.New(&breaker.Config{
//		Timeout:         30 * time.Second,
//		FailureRatio:    0.6,
//		MinimumRequests: 10,
//	}, breaker.WithLogger(logger))
//
//	registry = breaker.GuardRegistry(registry, brk)
//
// ErrOpenState 包装 xerrors.ErrUnavailable，HTTP 接入据此返回 503。
package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/bfametrics/clog"
)

// Breaker 熔断器
type Breaker interface {
	// Execute 在 key 对应的熔断器保护下执行 fn，fn 的错误原样返回。
	// 熔断器打开时不执行 fn，返回 ErrOpenState。
	Execute(ctx context.Context, key string, fn func(ctx context.Context) error) error

	// State 返回 key 对应熔断器的状态，从未使用过的 key 返回 ErrBreakerNotFound
	State(key string) (State, error)
}

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// Enabled 供应用层判断是否为注册表加装熔断
	Enabled bool `mapstructure:"enabled"`

	// MaxRequests 半开状态下允许通过的探测请求数（默认：1）
	MaxRequests uint32 `mapstructure:"max_requests"`

	// Interval 闭合状态下清空统计的周期（默认：0，不清空）
	Interval time.Duration `mapstructure:"interval"`

	// Timeout 打开状态持续时间，之后进入半开（默认：60s）
	Timeout time.Duration `mapstructure:"timeout"`

	// FailureRatio 触发熔断的失败率（默认：0.6）
	FailureRatio float64 `mapstructure:"failure_ratio"`

	// MinimumRequests 统计周期内请求数达到该值才判断失败率（默认：10）
	MinimumRequests uint32 `mapstructure:"minimum_requests"`
}

func (c *Config) setDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

// New 创建熔断器
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()

	opt := options{logger: clog.Discard()}
	for _, o := range opts {
		o(&opt)
	}

	inst, err := newInstruments(opt.meter)
	if err != nil {
		return nil, err
	}

	opt.logger.Info("circuit breaker created",
		clog.Int("max_requests", int(cfg.MaxRequests)),
		clog.Duration("interval", cfg.Interval),
		clog.Duration("timeout", cfg.Timeout),
		clog.Float64("failure_ratio", cfg.FailureRatio),
		clog.Int("minimum_requests", int(cfg.MinimumRequests)))

	return &circuitBreaker{cfg: cfg, logger: opt.logger, inst: inst}, nil
}
