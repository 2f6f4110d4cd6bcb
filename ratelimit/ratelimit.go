// Package ratelimit 为失败事件上报接口提供令牌桶限流。
//
// 两种驱动共用 Limiter 接口：
//   - standalone：基于 golang.org/x/time/rate 的进程内限流
//   - distributed：基于 Redis + Lua，多个实例共享同一份配额
//
// 基本使用：
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{
//	    Driver: ratelimit.DriverStandalone,
//	    Rate:   50,
//	    Burst:  100,
//	}, ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	allowed, _ := limiter.Allow(ctx, "ip:10.0.0.1", ratelimit.Limit{Rate: 50, Burst: 100})
//
// Gin 中间件：
//
//	r.Use(ratelimit.GinMiddleware(limiter, &ratelimit.GinMiddlewareOptions{
//	    LimitFunc: func(*gin.Context) ratelimit.Limit { return cfg.Limit() },
//	}))
package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

// Limit 令牌桶规则
type Limit struct {
	Rate  float64 // 每秒生成的令牌数
	Burst int     // 桶容量，即允许的突发请求数
}

func (l Limit) valid() bool {
	return l.Rate > 0 && l.Burst > 0
}

// Limiter 限流器
type Limiter interface {
	// Allow 尝试获取 1 个令牌，不阻塞。
	// 返回的 error 表示限流器自身故障，与是否放行无关。
	Allow(ctx context.Context, key string, limit Limit) (bool, error)

	// AllowN 尝试获取 n 个令牌，不阻塞
	AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error)

	// Close 释放后台资源，Redis 连接由连接器自行管理
	Close() error
}

// DriverType 限流驱动
type DriverType string

const (
	DriverStandalone  DriverType = "standalone"
	DriverDistributed DriverType = "distributed"
)

// Config 限流配置
type Config struct {
	// Enabled 供应用层判断是否挂载限流中间件
	Enabled bool `mapstructure:"enabled"`

	// Driver "standalone"（默认）| "distributed"
	Driver DriverType `mapstructure:"driver"`

	// Rate 与 Burst 为默认规则，默认 100/s，突发 200
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`

	// KeyHeader 非空时按该请求头的值限流，缺失时回退到客户端 IP
	KeyHeader string `mapstructure:"key_header"`

	// CleanupInterval 与 IdleTimeout 控制 standalone 驱动回收空闲桶
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`

	// Prefix distributed 驱动的 Redis 键前缀（默认 "bfa:ratelimit:"）
	Prefix string `mapstructure:"prefix"`
}

// Limit 返回配置中的默认规则
func (c *Config) Limit() Limit {
	return Limit{Rate: c.Rate, Burst: c.Burst}
}

func (c *Config) setDefaults() {
	c.Driver = DriverType(strings.ToLower(strings.TrimSpace(string(c.Driver))))
	if c.Driver == "" {
		c.Driver = DriverStandalone
	}
	if c.Rate <= 0 {
		c.Rate = 100
	}
	if c.Burst <= 0 {
		c.Burst = 200
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.Prefix == "" {
		c.Prefix = "bfa:ratelimit:"
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverStandalone, DriverDistributed:
		return nil
	default:
		return xerrors.Invalid("ratelimit: unsupported driver %q", c.Driver)
	}
}

// New 按配置创建限流器，distributed 驱动需要 WithRedisConnector
func New(cfg *Config, opts ...Option) (Limiter, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{logger: clog.Discard()}
	for _, o := range opts {
		o(&opt)
	}
	logger := opt.logger.WithNamespace("ratelimit")

	inst, err := newInstruments(opt.meter)
	if err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverDistributed:
		if opt.redisConn == nil {
			return nil, xerrors.WithCode(ErrConnectorNil, "redis_connector_required")
		}
		logger.Info("creating distributed rate limiter", clog.String("prefix", cfg.Prefix))
		return newDistributed(cfg.Prefix, opt.redisConn, logger, inst), nil
	default:
		logger.Info("creating standalone rate limiter",
			clog.Duration("cleanup_interval", cfg.CleanupInterval),
			clog.Duration("idle_timeout", cfg.IdleTimeout))
		return newStandalone(cfg.CleanupInterval, cfg.IdleTimeout, logger, inst), nil
	}
}
