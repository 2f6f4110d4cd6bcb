package breaker

import "github.com/ceyewan/bfametrics/xerrors"

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: config is nil")

	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: key is empty")

	// ErrBreakerNotFound 该键尚未创建熔断器
	ErrBreakerNotFound = xerrors.Wrap(xerrors.ErrNotFound, "breaker: breaker not found")

	// ErrOpenState 熔断器打开或半开探测名额已满
	ErrOpenState = xerrors.Wrap(xerrors.ErrUnavailable, "breaker: circuit breaker is open")
)
