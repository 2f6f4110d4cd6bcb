package breaker

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/ceyewan/bfametrics/metrics"
)

// RegistryKey GuardRegistry 使用的熔断键
const RegistryKey = "registry"

// GuardRegistry 让注册表与其计数器的每次访问都经过熔断器。
// 后端错误原样透传，熔断期间返回 ErrOpenState。
func GuardRegistry(r metrics.Registry, b Breaker) metrics.Registry {
	if b == nil {
		return r
	}
	return &guardedRegistry{inner: r, breaker: b}
}

type guardedRegistry struct {
	inner   metrics.Registry
	breaker Breaker
}

func (g *guardedRegistry) CounterNames(ctx context.Context) ([]string, error) {
	var names []string
	err := g.breaker.Execute(ctx, RegistryKey, func(ctx context.Context) error {
		var err error
		names, err = g.inner.CounterNames(ctx)
		return err
	})
	return names, err
}

func (g *guardedRegistry) Counter(ctx context.Context, name string) (metrics.Counter, error) {
	var c metrics.Counter
	err := g.breaker.Execute(ctx, RegistryKey, func(ctx context.Context) error {
		var err error
		c, err = g.inner.Counter(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &guardedCounter{inner: c, breaker: g.breaker}, nil
}

func (g *guardedRegistry) Shutdown(ctx context.Context) error {
	return g.inner.Shutdown(ctx)
}

// Meter 透传底层注册表的 Meter，metrics.MeterOf 据此找到导出链路
func (g *guardedRegistry) Meter() metric.Meter {
	return metrics.MeterOf(g.inner)
}

type guardedCounter struct {
	inner   metrics.Counter
	breaker Breaker
}

func (c *guardedCounter) Inc(ctx context.Context) error {
	return c.breaker.Execute(ctx, RegistryKey, c.inner.Inc)
}

func (c *guardedCounter) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.breaker.Execute(ctx, RegistryKey, func(ctx context.Context) error {
		var err error
		n, err = c.inner.Count(ctx)
		return err
	})
	return n, err
}
