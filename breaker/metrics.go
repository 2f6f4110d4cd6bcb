package breaker

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ceyewan/bfametrics/xerrors"
)

const (
	// MetricRejectsTotal 被熔断拒绝的请求数 (Counter)
	MetricRejectsTotal = "breaker_rejects_total"

	// MetricStateChanges 状态变更次数 (Counter)
	MetricStateChanges = "breaker_state_changes_total"

	LabelKey       = "key"
	LabelFromState = "from_state"
	LabelToState   = "to_state"
)

type instruments struct {
	rejects      metric.Int64Counter
	stateChanges metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	if meter == nil {
		return nil, nil
	}
	rejects, err := meter.Int64Counter(MetricRejectsTotal, metric.WithDescription("Rejected requests"))
	if err != nil {
		return nil, xerrors.Wrap(err, "create breaker rejects counter")
	}
	changes, err := meter.Int64Counter(MetricStateChanges, metric.WithDescription("Circuit breaker state changes"))
	if err != nil {
		return nil, xerrors.Wrap(err, "create breaker state counter")
	}
	return &instruments{rejects: rejects, stateChanges: changes}, nil
}

func (i *instruments) reject(ctx context.Context, key string) {
	if i == nil {
		return
	}
	i.rejects.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelKey, key)))
}

func (i *instruments) stateChange(ctx context.Context, key string, from, to State) {
	if i == nil {
		return
	}
	i.stateChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String(LabelKey, key),
		attribute.String(LabelFromState, from.String()),
		attribute.String(LabelToState, to.String())))
}
