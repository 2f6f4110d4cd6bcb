package ratelimit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ceyewan/bfametrics/xerrors"
)

const (
	// MetricAllowed 放行次数 (Counter)
	MetricAllowed = "ratelimit_allowed_total"
	// MetricDenied 拒绝次数 (Counter)
	MetricDenied = "ratelimit_denied_total"

	// LabelMode 驱动标签 (standalone/distributed)
	LabelMode = "mode"
)

type instruments struct {
	allowed metric.Int64Counter
	denied  metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	if meter == nil {
		return nil, nil
	}
	allowed, err := meter.Int64Counter(MetricAllowed, metric.WithDescription("Number of allowed requests"))
	if err != nil {
		return nil, xerrors.Wrap(err, "create ratelimit allowed counter")
	}
	denied, err := meter.Int64Counter(MetricDenied, metric.WithDescription("Number of denied requests"))
	if err != nil {
		return nil, xerrors.Wrap(err, "create ratelimit denied counter")
	}
	return &instruments{allowed: allowed, denied: denied}, nil
}

func (i *instruments) record(ctx context.Context, mode string, allowed bool) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(LabelMode, mode))
	if allowed {
		i.allowed.Add(ctx, 1, attrs)
		return
	}
	i.denied.Add(ctx, 1, attrs)
}
