// Package idem 保证同一个键标识的操作只执行一次。
//
// intake 用它对带 ID 的失败事件去重：消息队列重投或客户端重试时，
// 同一事件只被计数一次。
//
//	guard, _ := idem.New(&idem.Config{Driver: idem.DriverRedis},
//	    idem.WithRedisConnector(redisConn), idem.WithLogger(logger))
//
//	executed, err := guard.Consume(ctx, "event:"+id, 0, func(ctx context.Context) error {
//	    return manager.IncCounters(ctx, causes, squash)
//	})
//
// 状态流转：不存在 → 处理中 (Lock) → 已完成 (MarkDone)。fn 失败时释放锁，
// 后续重试可以再次执行。
package idem

import (
	"context"
	"time"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

// Idempotency 幂等执行器
type Idempotency interface {
	// Consume 键未完成时执行 fn 并标记完成，返回 fn 是否被执行。
	// 已完成返回 (false, nil)；另一个调用正在处理返回 ErrConcurrentRequest。
	// ttl 为完成标记的有效期，<=0 时使用 Config.DefaultTTL。
	Consume(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (executed bool, err error)
}

// New 创建幂等执行器
func New(cfg *Config, opts ...Option) (Idempotency, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{logger: clog.Discard()}
	for _, o := range opts {
		o(&opt)
	}
	logger := opt.logger.WithNamespace("idem")

	var store Store
	switch cfg.Driver {
	case DriverRedis:
		if opt.redisConn == nil {
			return nil, xerrors.Invalid("idem: redis connector is required, use WithRedisConnector")
		}
		store = newRedisStore(opt.redisConn, cfg.Prefix)
	case DriverMemory:
		s, err := newMemoryStore(cfg.Prefix, cfg.Capacity)
		if err != nil {
			return nil, err
		}
		store = s
	}

	logger.Info("creating idem component",
		clog.String("driver", string(cfg.Driver)),
		clog.String("prefix", cfg.Prefix),
		clog.Duration("default_ttl", cfg.DefaultTTL),
		clog.Duration("lock_ttl", cfg.LockTTL))
	return &idem{cfg: cfg, store: store, logger: logger}, nil
}
