package metrics

import (
	"context"
	"errors"

	"github.com/maypok86/otter/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/xerrors"
)

// redisRegistry 把所有计数器存放在一个 Hash 中，字段为名称，值为计数。
// known 记录本进程已确认存在的名称，命中时跳过 HSETNX。
type redisRegistry struct {
	conn   connector.RedisConnector
	key    string
	known  *otter.Cache[string, struct{}]
	logger clog.Logger
}

type redisCounter struct {
	r    *redisRegistry
	name string
}

func newRedis(cfg *Config, conn connector.RedisConnector, logger clog.Logger) (*redisRegistry, error) {
	known, err := otter.New(&otter.Options[string, struct{}]{
		MaximumSize: cfg.CacheSize,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build known-name cache")
	}

	key := cfg.KeyPrefix + ":counters"
	logger.Info("using redis counter registry", clog.String("key", key), clog.String("connector", conn.Name()))
	return &redisRegistry{
		conn:   conn,
		key:    key,
		known:  known,
		logger: logger,
	}, nil
}

func (r *redisRegistry) client() (*redis.Client, error) {
	client := r.conn.GetClient()
	if client == nil {
		return nil, connector.ErrNotConnected
	}
	return client, nil
}

func (r *redisRegistry) CounterNames(ctx context.Context) ([]string, error) {
	client, err := r.client()
	if err != nil {
		return nil, err
	}
	names, err := client.HKeys(ctx, r.key).Result()
	if err != nil {
		return nil, xerrors.Wrapf(err, "redis HKEYS %s", r.key)
	}
	return names, nil
}

func (r *redisRegistry) Counter(ctx context.Context, name string) (Counter, error) {
	if _, ok := r.known.GetIfPresent(name); ok {
		return &redisCounter{r: r, name: name}, nil
	}

	client, err := r.client()
	if err != nil {
		return nil, err
	}
	created, err := client.HSetNX(ctx, r.key, name, 0).Result()
	if err != nil {
		return nil, xerrors.Wrapf(err, "redis HSETNX %s %s", r.key, name)
	}
	if created {
		r.logger.Debug("counter created", clog.String("metric", name))
	}
	r.known.Set(name, struct{}{})
	return &redisCounter{r: r, name: name}, nil
}

func (r *redisRegistry) Shutdown(context.Context) error {
	r.known.InvalidateAll()
	return nil
}

func (c *redisCounter) Inc(ctx context.Context) error {
	client, err := c.r.client()
	if err != nil {
		return err
	}
	if err := client.HIncrBy(ctx, c.r.key, c.name, 1).Err(); err != nil {
		return xerrors.Wrapf(err, "redis HINCRBY %s %s", c.r.key, c.name)
	}
	return nil
}

func (c *redisCounter) Count(ctx context.Context) (int64, error) {
	client, err := c.r.client()
	if err != nil {
		return 0, err
	}
	n, err := client.HGet(ctx, c.r.key, c.name).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, xerrors.Wrapf(err, "redis HGET %s %s", c.r.key, c.name)
	}
	return n, nil
}
