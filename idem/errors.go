package idem

import "github.com/ceyewan/bfametrics/xerrors"

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.Wrap(xerrors.ErrInvalidInput, "idem: config is nil")
	// ErrKeyEmpty 幂等键为空
	ErrKeyEmpty = xerrors.Wrap(xerrors.ErrInvalidInput, "idem: key is empty")
	// ErrConcurrentRequest 同一个键正在被处理
	ErrConcurrentRequest = xerrors.New("idem: concurrent request detected")
)
