package idem

import (
	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
)

// Option 组件初始化选项
type Option func(*options)

type options struct {
	logger    clog.Logger
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

// WithRedisConnector 注入 Redis 连接器
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		if conn != nil {
			o.redisConn = conn
		}
	}
}
