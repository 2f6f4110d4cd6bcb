// Package db 在 GORM 连接器之上提供统一的日志与链路追踪。
//
// db 借用连接器的连接，不负责其生命周期：
//
//	conn, _ := connector.NewSQLite(&connector.SQLiteConfig{Path: "/var/lib/bfa/counters.db"})
//	defer conn.Close()
//	_ = conn.Connect(ctx)
//
//	database, _ := db.New(conn, &db.Config{EnableTracing: true}, db.WithLogger(logger))
//	err := database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
//		return tx.Create(&row).Error
//	})
//
// SQL 日志经 clog 输出，慢查询以 warn 级别记录；开启 EnableTracing 后
// 每条 SQL 都会成为当前 Span 的子 Span。
package db

import (
	"context"
	"errors"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/xerrors"
)

// DB 数据库组件
type DB interface {
	// DB 返回绑定 ctx 的 *gorm.DB
	DB(ctx context.Context) *gorm.DB

	// Transaction 在事务中执行 fn，fn 返回错误时回滚
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error

	// Close 释放组件，不关闭连接器
	Close() error
}

type database struct {
	client *gorm.DB
	logger clog.Logger
}

// New 基于已连接的连接器创建 DB 组件
func New(conn connector.GormConnector, cfg *Config, opts ...Option) (DB, error) {
	if conn == nil {
		return nil, ErrConnectorRequired
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrapf(connector.ErrNotConnected, "db: connector[%s]", conn.Name())
	}

	if cfg.EnableTracing {
		pluginOpts := []otelgorm.Option{otelgorm.WithoutQueryVariables()}
		if o.tracer != nil {
			pluginOpts = append(pluginOpts, otelgorm.WithTracerProvider(o.tracer))
		}
		// 同一连接器上重复注册时沿用已有插件
		if err := client.Use(otelgorm.NewPlugin(pluginOpts...)); err != nil && !errors.Is(err, gorm.ErrRegistered) {
			return nil, xerrors.Wrap(err, "db: register otelgorm plugin")
		}
	}

	client = client.Session(&gorm.Session{
		Logger: newGormLogger(o.logger, logLevels[cfg.LogLevel], cfg.SlowThreshold),
	})
	o.logger.Debug("db component ready",
		clog.String("connector", conn.Name()),
		clog.Bool("tracing", cfg.EnableTracing))

	return &database{client: client, logger: o.logger}, nil
}

func (d *database) DB(ctx context.Context) *gorm.DB {
	return d.client.WithContext(ctx)
}

func (d *database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return d.client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}

// Close 连接由连接器管理，这里无需释放
func (d *database) Close() error {
	return nil
}
