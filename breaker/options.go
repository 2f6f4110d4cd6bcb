package breaker

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/ceyewan/bfametrics/clog"
)

// Option 组件初始化选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metric.Meter
}

// WithLogger 设置 Logger，内部会添加 namespace: "breaker"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置记录拒绝与状态变更的 Meter
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}
