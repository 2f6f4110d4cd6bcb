package intake

import (
	"github.com/ceyewan/bfametrics/cause"
	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/idem"
)

// Option 配置 Handler
type Option func(*Handler)

// WithLogger 设置日志记录器，自动添加 "intake" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger.WithNamespace("intake")
		}
	}
}

// WithCatalog 设置原因目录，事件中未带分类的原因按名称补全分类
func WithCatalog(catalog *cause.Catalog) Option {
	return func(h *Handler) {
		h.catalog = catalog
	}
}

// WithIDGenerator 设置事件 ID 生成函数 (默认: uuid v4)
func WithIDGenerator(fn func() string) Option {
	return func(h *Handler) {
		if fn != nil {
			h.newID = fn
		}
	}
}

// WithIdempotency 按事件 ID 去重，队列重投或客户端重试的事件只计数一次
func WithIdempotency(guard idem.Idempotency) Option {
	return func(h *Handler) {
		h.guard = guard
	}
}
