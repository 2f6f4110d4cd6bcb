package metrics

import (
	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/db"
)

// Option 配置 Registry 实例的选项函数类型
type Option func(*options)

type options struct {
	logger clog.Logger
	redis  connector.RedisConnector
	db     db.DB
}

// WithLogger 注入日志记录器，自动添加 "metrics" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}

// WithRedis 注入 Redis 连接器，redis 后端必需。连接器的生命周期由调用方管理
func WithRedis(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redis = conn
	}
}

// WithDB 注入 DB 组件，sql 后端必需。底层连接器的生命周期由调用方管理
func WithDB(database db.DB) Option {
	return func(o *options) {
		o.db = database
	}
}
