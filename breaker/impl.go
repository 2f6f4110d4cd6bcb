package breaker

import (
	"context"
	"errors"
	"sync"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

type circuitBreaker struct {
	cfg    *Config
	logger clog.Logger
	inst   *instruments

	breakers sync.Map // map[string]*gobreaker.CircuitBreaker[struct{}]
}

func (cb *circuitBreaker) Execute(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if key == "" {
		return ErrKeyEmpty
	}

	_, err := cb.breaker(key).Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.inst.reject(ctx, key)
		cb.logger.Debug("request rejected by circuit breaker", clog.String("key", key))
		return xerrors.Wrapf(ErrOpenState, "key %q", key)
	}
	return err
}

func (cb *circuitBreaker) State(key string) (State, error) {
	if key == "" {
		return StateClosed, ErrKeyEmpty
	}
	v, ok := cb.breakers.Load(key)
	if !ok {
		return StateClosed, ErrBreakerNotFound
	}
	return fromGobreaker(v.(*gobreaker.CircuitBreaker[struct{}]).State()), nil
}

func (cb *circuitBreaker) breaker(key string) *gobreaker.CircuitBreaker[struct{}] {
	if v, ok := cb.breakers.Load(key); ok {
		return v.(*gobreaker.CircuitBreaker[struct{}])
	}

	b := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:          key,
		MaxRequests:   cb.cfg.MaxRequests,
		Interval:      cb.cfg.Interval,
		Timeout:       cb.cfg.Timeout,
		ReadyToTrip:   cb.readyToTrip,
		OnStateChange: cb.onStateChange,
		IsSuccessful:  isSuccessful,
	})
	actual, _ := cb.breakers.LoadOrStore(key, b)
	return actual.(*gobreaker.CircuitBreaker[struct{}])
}

func (cb *circuitBreaker) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < cb.cfg.MinimumRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= cb.cfg.FailureRatio
}

func (cb *circuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	f, t := fromGobreaker(from), fromGobreaker(to)
	cb.logger.Warn("circuit breaker state changed",
		clog.String("key", name),
		clog.String("from", f.String()),
		clog.String("to", t.String()))
	cb.inst.stateChange(context.Background(), name, f, t)
}

// isSuccessful 调用方取消与输入错误不代表后端故障
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, xerrors.ErrInvalidInput)
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
