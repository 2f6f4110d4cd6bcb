package metrics

import (
	"context"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

// New 按配置创建 Registry，cfg 为 nil 时使用内存后端
func New(cfg *Config, opts ...Option) (Registry, error) {
	if cfg == nil {
		cfg = NewDevDefaultConfig("bfa-metrics")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid metrics config")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	logger := o.logger.With(clog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case BackendPrometheus:
		r, err := newPrometheus(cfg, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendRedis:
		if o.redis == nil {
			return nil, xerrors.Invalid("redis backend requires WithRedis")
		}
		r, err := newRedis(cfg, o.redis, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendSQL:
		if o.db == nil {
			return nil, xerrors.Invalid("sql backend requires WithDB")
		}
		r, err := newSQL(context.Background(), cfg, o.db, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		logger.Debug("using in-memory counter registry")
		return NewMemory(), nil
	}
}

// Must 类似 New，但出错时 panic，仅用于初始化阶段
func Must(cfg *Config, opts ...Option) Registry {
	return xerrors.Must(New(cfg, opts...))
}

// Snapshot 读取注册表中所有计数器的当前值
func Snapshot(ctx context.Context, r Registry) (map[string]int64, error) {
	names, err := r.CounterNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(names))
	for _, name := range names {
		c, err := r.Counter(ctx, name)
		if err != nil {
			return nil, err
		}
		if out[name], err = c.Count(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Discard 返回丢弃一切的 Registry：不记录名称，计数恒为 0
func Discard() Registry {
	return noopRegistry{}
}

type noopRegistry struct{}

func (noopRegistry) CounterNames(context.Context) ([]string, error) { return nil, nil }

func (noopRegistry) Counter(context.Context, string) (Counter, error) { return noopCounter{}, nil }

func (noopRegistry) Shutdown(context.Context) error { return nil }

type noopCounter struct{}

func (noopCounter) Inc(context.Context) error { return nil }

func (noopCounter) Count(context.Context) (int64, error) { return 0, nil }
