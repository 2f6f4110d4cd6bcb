package bfa

import "github.com/ceyewan/bfametrics/clog"

// Option 配置 Manager
type Option func(*Manager)

// WithLogger 设置日志记录器，自动添加 "bfa" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.WithNamespace("bfa")
		}
	}
}
