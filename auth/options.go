package auth

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/ceyewan/bfametrics/clog"
)

// Option 配置选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metric.Meter
}

func defaultOptions() *options {
	return &options{logger: clog.Discard()}
}

// WithLogger 注入日志记录器，自动添加 "auth" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("auth")
		}
	}
}

// WithMeter 注入记录校验结果的 Meter
func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}
