package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/xerrors"
)

// tokenBucketScript 以"下一次可放行时间戳"表示令牌桶状态
//
// KEYS[1] 限流键
// ARGV[1] rate，ARGV[2] burst，ARGV[3] 当前时间（秒，浮点），ARGV[4] 本次消耗的令牌数
// 返回 {allowed(0|1), remaining}
var tokenBucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local interval = 1 / rate
local fill_time = capacity * interval

local last = tonumber(redis.call("GET", KEYS[1]))
if last == nil then
  last = now
end

local next_available = math.max(last, now)
local updated = next_available + requested * interval
local allow_at_most = now + fill_time

if updated <= allow_at_most then
  redis.call("SET", KEYS[1], updated, "EX", math.ceil(fill_time * 2))
  return {1, math.floor((allow_at_most - updated) / interval)}
end
return {0, math.floor((allow_at_most - next_available) / interval)}
`)

type distributedLimiter struct {
	client *redis.Client
	prefix string
	logger clog.Logger
	inst   *instruments
}

func newDistributed(prefix string, conn connector.RedisConnector, logger clog.Logger, inst *instruments) *distributedLimiter {
	return &distributedLimiter{
		client: conn.GetClient(),
		prefix: prefix,
		logger: logger,
		inst:   inst,
	}
}

func (l *distributedLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

func (l *distributedLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	if !limit.valid() || n <= 0 {
		return false, ErrInvalidLimit
	}

	now := float64(time.Now().UnixNano()) / 1e9
	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + key}, limit.Rate, limit.Burst, now, n).Int64Slice()
	if err != nil {
		l.logger.Error("failed to execute rate limit script", clog.String("key", key), clog.Error(err))
		return false, xerrors.Wrap(err, "ratelimit: execute lua script")
	}
	if len(res) != 2 {
		return false, xerrors.New("ratelimit: invalid lua script result")
	}

	allowed := res[0] == 1
	l.inst.record(ctx, string(DriverDistributed), allowed)
	l.logger.Debug("rate limit check",
		clog.String("key", key),
		clog.Bool("allowed", allowed),
		clog.Int64("remaining", res[1]),
		clog.Float64("rate", limit.Rate),
		clog.Int("burst", limit.Burst),
		clog.Int("requested", n))
	return allowed, nil
}

func (l *distributedLimiter) Close() error {
	return nil
}
