package connector

import (
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ceyewan/bfametrics/clog"
)

type options struct {
	logger    clog.Logger
	kafkaOpts []kgo.Opt
}

// Option 配置连接器的选项
type Option func(*options)

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithKafkaOpts 追加 franz-go 客户端选项，例如消费的 Topic 与消费组
func WithKafkaOpts(opts ...kgo.Opt) Option {
	return func(o *options) {
		o.kafkaOpts = append(o.kafkaOpts, opts...)
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	return o
}
