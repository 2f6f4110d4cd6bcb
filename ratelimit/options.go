package ratelimit

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
)

// Option 组件初始化选项
type Option func(*options)

type options struct {
	logger    clog.Logger
	meter     metric.Meter
	redisConn connector.RedisConnector
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeter 设置记录放行/拒绝次数的 Meter，通常传 metrics.MeterOf(registry)
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithRedisConnector 注入 Redis 连接器（distributed 驱动）
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		if conn != nil {
			o.redisConn = conn
		}
	}
}
