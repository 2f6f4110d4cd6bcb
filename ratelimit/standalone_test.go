package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

func newStandaloneLimiter(t *testing.T) *standaloneLimiter {
	t.Helper()
	l := newStandalone(time.Hour, time.Hour, clog.Discard(), nil)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestNew(t *testing.T) {
	t.Run("nil 配置返回错误", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrConfigNil)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("未知驱动返回错误", func(t *testing.T) {
		_, err := New(&Config{Driver: "token-ring"})
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("distributed 缺少连接器返回错误", func(t *testing.T) {
		_, err := New(&Config{Driver: DriverDistributed})
		assert.ErrorIs(t, err, ErrConnectorNil)
		assert.Equal(t, "redis_connector_required", xerrors.GetCode(err))
	})

	t.Run("默认值", func(t *testing.T) {
		cfg := &Config{Driver: " Standalone "}
		l, err := New(cfg)
		require.NoError(t, err)
		defer l.Close()

		assert.Equal(t, DriverStandalone, cfg.Driver)
		assert.Equal(t, Limit{Rate: 100, Burst: 200}, cfg.Limit())
		assert.Equal(t, time.Minute, cfg.CleanupInterval)
		assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
		assert.Equal(t, "bfa:ratelimit:", cfg.Prefix)
	})
}

func TestStandaloneLimiter_Allow(t *testing.T) {
	l := newStandaloneLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 1, Burst: 1}

	t.Run("第一次请求放行，第二次拒绝", func(t *testing.T) {
		allowed, err := l.Allow(ctx, "ip:10.0.0.1", limit)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = l.Allow(ctx, "ip:10.0.0.1", limit)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("不同 key 独立限流", func(t *testing.T) {
		allowed, err := l.Allow(ctx, "ip:10.0.0.2", limit)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("规则变化使用新的桶", func(t *testing.T) {
		allowed, err := l.Allow(ctx, "ip:10.0.0.1", Limit{Rate: 1, Burst: 2})
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestStandaloneLimiter_AllowN(t *testing.T) {
	l := newStandaloneLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 1, Burst: 5}

	allowed, err := l.AllowN(ctx, "job:deploy", limit, 3)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.AllowN(ctx, "job:deploy", limit, 3)
	require.NoError(t, err)
	assert.False(t, allowed, "只剩 2 个令牌")

	allowed, err = l.AllowN(ctx, "job:other", limit, 6)
	require.NoError(t, err)
	assert.False(t, allowed, "超过 Burst 永远不放行")
}

func TestStandaloneLimiter_InvalidInput(t *testing.T) {
	l := newStandaloneLimiter(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		limit Limit
		n     int
		want  error
	}{
		{name: "空 key", key: "", limit: Limit{Rate: 1, Burst: 1}, n: 1, want: ErrKeyEmpty},
		{name: "零 Rate", key: "k", limit: Limit{Rate: 0, Burst: 1}, n: 1, want: ErrInvalidLimit},
		{name: "负数 Burst", key: "k", limit: Limit{Rate: 1, Burst: -1}, n: 1, want: ErrInvalidLimit},
		{name: "n 为 0", key: "k", limit: Limit{Rate: 1, Burst: 1}, n: 0, want: ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := l.AllowN(ctx, tt.key, tt.limit, tt.n)
			assert.False(t, allowed)
			assert.True(t, errors.Is(err, tt.want), "err = %v", err)
		})
	}
}

func TestStandaloneLimiter_Concurrency(t *testing.T) {
	l := newStandaloneLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 0.001, Burst: 10}

	var wg sync.WaitGroup
	var allowed atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Allow(ctx, "shared", limit)
			if err == nil && ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load(), "并发下放行数等于 Burst")
}

func TestStandaloneLimiter_EvictIdle(t *testing.T) {
	l := newStandaloneLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 1, Burst: 1}

	_, err := l.Allow(ctx, "stale", limit)
	require.NoError(t, err)

	assert.Equal(t, 0, l.evictIdle(time.Now(), time.Minute), "未超时不回收")
	assert.Equal(t, 1, l.evictIdle(time.Now().Add(2*time.Minute), time.Minute))

	allowed, err := l.Allow(ctx, "stale", limit)
	require.NoError(t, err)
	assert.True(t, allowed, "回收后重新获得满桶")
}

func TestStandaloneLimiter_CloseTwice(t *testing.T) {
	l := newStandalone(time.Millisecond, time.Millisecond, clog.Discard(), nil)
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

func TestLimiterRecordsDecisions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	l, err := New(&Config{Rate: 1, Burst: 1}, WithMeter(provider.Meter("test")))
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	_, _ = l.Allow(ctx, "k", Limit{Rate: 1, Burst: 1})
	_, _ = l.Allow(ctx, "k", Limit{Rate: 1, Burst: 1})
	_, _ = l.Allow(ctx, "k", Limit{Rate: 1, Burst: 1})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s should be an int64 sum", m.Name)
			for _, dp := range sum.DataPoints {
				mode, _ := dp.Attributes.Value(LabelMode)
				assert.Equal(t, string(DriverStandalone), mode.AsString())
				got[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{MetricAllowed: 1, MetricDenied: 2}, got)
}
