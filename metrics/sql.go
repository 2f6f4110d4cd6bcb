package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/maypok86/otter/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/db"
	"github.com/ceyewan/bfametrics/xerrors"
)

// counterRow 一行对应一个计数器
type counterRow struct {
	Name      string `gorm:"primaryKey;size:512"`
	Hits      int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// sqlRegistry 把计数器持久化在 Table 表中，适合需要跨重启保留计数的单库部署。
// known 记录本进程已确认存在的名称，命中时跳过 INSERT。
type sqlRegistry struct {
	db     db.DB
	table  string
	known  *otter.Cache[string, struct{}]
	logger clog.Logger
}

type sqlCounter struct {
	r    *sqlRegistry
	name string
}

func newSQL(ctx context.Context, cfg *Config, database db.DB, logger clog.Logger) (*sqlRegistry, error) {
	migrate := database.DB(ctx).Table(cfg.Table)
	if migrate.Dialector.Name() == "mysql" {
		// 名称区分大小写，默认排序规则会把 OOM 与 oom 视为同一主键
		migrate = migrate.Set("gorm:table_options", "DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin")
	}
	if err := migrate.AutoMigrate(&counterRow{}); err != nil {
		return nil, xerrors.Wrapf(err, "migrate counter table %s", cfg.Table)
	}
	known, err := otter.New(&otter.Options[string, struct{}]{
		MaximumSize: cfg.CacheSize,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build known-name cache")
	}

	logger.Info("using sql counter registry", clog.String("table", cfg.Table))
	return &sqlRegistry{
		db:     database,
		table:  cfg.Table,
		known:  known,
		logger: logger,
	}, nil
}

func (r *sqlRegistry) tx(ctx context.Context) *gorm.DB {
	return r.db.DB(ctx).Table(r.table)
}

func (r *sqlRegistry) CounterNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.tx(ctx).Pluck("name", &names).Error; err != nil {
		return nil, xerrors.Wrapf(err, "list counters in %s", r.table)
	}
	return names, nil
}

func (r *sqlRegistry) Counter(ctx context.Context, name string) (Counter, error) {
	if _, ok := r.known.GetIfPresent(name); ok {
		return &sqlCounter{r: r, name: name}, nil
	}

	res := r.tx(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&counterRow{Name: name})
	if res.Error != nil {
		return nil, xerrors.Wrapf(res.Error, "create counter %s", name)
	}
	if res.RowsAffected > 0 {
		r.logger.Debug("counter created", clog.String("metric", name))
	}
	r.known.Set(name, struct{}{})
	return &sqlCounter{r: r, name: name}, nil
}

func (r *sqlRegistry) Shutdown(context.Context) error {
	r.known.InvalidateAll()
	return nil
}

// Inc 以 upsert 自增，行被外部删除时重新以 1 创建
func (c *sqlCounter) Inc(ctx context.Context) error {
	err := c.r.tx(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"hits":       gorm.Expr("hits + ?", 1),
			"updated_at": time.Now(),
		}),
	}).Create(&counterRow{Name: c.name, Hits: 1}).Error
	if err != nil {
		return xerrors.Wrapf(err, "increment counter %s", c.name)
	}
	return nil
}

func (c *sqlCounter) Count(ctx context.Context) (int64, error) {
	var row counterRow
	err := c.r.tx(ctx).Select("hits").Where("name = ?", c.name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, xerrors.Wrapf(err, "read counter %s", c.name)
	}
	return row.Hits, nil
}
