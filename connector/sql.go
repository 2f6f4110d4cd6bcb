package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

// gormConnector MySQL 与 SQLite 共用的实现，区别只在方言与连接池参数
type gormConnector struct {
	name      string
	kind      string
	target    string // 日志中展示的地址，不含密码
	dialector func() gorm.Dialector
	pool      func(*gorm.DB) error

	mu      sync.RWMutex
	db      *gorm.DB
	logger  clog.Logger
	healthy atomic.Bool
}

// NewMySQL 创建 MySQL 连接器，Connect 时才建立连接
func NewMySQL(cfg *MySQLConfig, opts ...Option) (MySQLConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "mysql config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid mysql config")
	}

	opt := applyOptions(opts)
	dsn := cfg.dsn()
	return &gormConnector{
		name:      cfg.Name,
		kind:      "mysql",
		target:    cfg.Host + "/" + cfg.Database,
		dialector: func() gorm.Dialector { return mysql.Open(dsn) },
		pool: func(db *gorm.DB) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			return nil
		},
		logger: opt.logger.With(clog.String("connector", "mysql"), clog.String("name", cfg.Name)),
	}, nil
}

// NewSQLite 创建 SQLite 连接器，Connect 时才打开数据库文件
func NewSQLite(cfg *SQLiteConfig, opts ...Option) (SQLiteConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "sqlite config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid sqlite config")
	}

	opt := applyOptions(opts)
	return &gormConnector{
		name:      cfg.Name,
		kind:      "sqlite",
		target:    cfg.Path,
		dialector: func() gorm.Dialector { return sqlite.Open(cfg.Path) },
		pool: func(db *gorm.DB) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			// SQLite 只允许一个写者
			sqlDB.SetMaxOpenConns(1)
			return nil
		},
		logger: opt.logger.With(clog.String("connector", "sqlite"), clog.String("name", cfg.Name)),
	}, nil
}

// Connect 打开连接并 Ping，幂等
func (c *gormConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return nil
	}

	c.logger.Info("attempting to connect to "+c.kind, clog.String("target", c.target))
	db, err := gorm.Open(c.dialector(), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		c.logger.Error("failed to open "+c.kind, clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrConnection, err), "%s connector[%s]", c.kind, c.name)
	}
	if err := c.pool(db); err != nil {
		return xerrors.Wrapf(xerrors.Join(ErrConnection, err), "%s connector[%s]", c.kind, c.name)
	}
	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		c.logger.Error("failed to ping "+c.kind, clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrConnection, err), "%s connector[%s]", c.kind, c.name)
	}

	c.db = db
	c.healthy.Store(true)
	c.logger.Info("successfully connected to "+c.kind, clog.String("target", c.target))
	return nil
}

// Close 关闭连接池，幂等
func (c *gormConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}

	c.logger.Info("closing " + c.kind + " connection")
	sqlDB, err := c.db.DB()
	c.db = nil
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("failed to close "+c.kind+" connection", clog.Error(err))
		return err
	}
	return nil
}

// HealthCheck 检查连接健康状态
func (c *gormConnector) HealthCheck(ctx context.Context) error {
	db := c.GetClient()
	if db == nil {
		c.healthy.Store(false)
		return ErrNotConnected
	}
	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn(c.kind+" health check failed", clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrHealthCheck, err), "%s connector[%s]", c.kind, c.name)
	}
	c.healthy.Store(true)
	return nil
}

func (c *gormConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *gormConnector) Name() string {
	return c.name
}

func (c *gormConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
