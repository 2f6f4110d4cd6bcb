package idem

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/xerrors"
)

// unlockScript 仅当锁仍属于 token 时删除
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// markDoneScript 写入完成标记，并在锁仍属于 token 时释放
var markDoneScript = redis.NewScript(`
redis.call("SET", KEYS[2], "1", "PX", ARGV[2])
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
end
return 1
`)

type redisStore struct {
	conn   connector.RedisConnector
	prefix string
}

func newRedisStore(conn connector.RedisConnector, prefix string) Store {
	return &redisStore{conn: conn, prefix: prefix}
}

func (rs *redisStore) client() (*redis.Client, error) {
	client := rs.conn.GetClient()
	if client == nil {
		return nil, connector.ErrNotConnected
	}
	return client, nil
}

func (rs *redisStore) Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error) {
	client, err := rs.client()
	if err != nil {
		return "", false, err
	}
	token, err := newLockToken()
	if err != nil {
		return "", false, err
	}
	ok, err := client.SetNX(ctx, rs.prefix+key+lockSuffix, string(token), ttl).Result()
	if err != nil {
		return "", false, xerrors.Wrap(err, "failed to acquire lock")
	}
	return token, ok, nil
}

func (rs *redisStore) Unlock(ctx context.Context, key string, token LockToken) error {
	client, err := rs.client()
	if err != nil {
		return err
	}
	if err := unlockScript.Run(ctx, client, []string{rs.prefix + key + lockSuffix}, string(token)).Err(); err != nil {
		return xerrors.Wrap(err, "failed to release lock")
	}
	return nil
}

func (rs *redisStore) MarkDone(ctx context.Context, key string, ttl time.Duration, token LockToken) error {
	client, err := rs.client()
	if err != nil {
		return err
	}
	keys := []string{rs.prefix + key + lockSuffix, rs.prefix + key + doneSuffix}
	if err := markDoneScript.Run(ctx, client, keys, string(token), ttl.Milliseconds()).Err(); err != nil {
		return xerrors.Wrap(err, "failed to set done marker")
	}
	return nil
}

func (rs *redisStore) IsDone(ctx context.Context, key string) (bool, error) {
	client, err := rs.client()
	if err != nil {
		return false, err
	}
	n, err := client.Exists(ctx, rs.prefix+key+doneSuffix).Result()
	if err != nil {
		return false, xerrors.Wrap(err, "failed to get done marker")
	}
	return n > 0, nil
}
