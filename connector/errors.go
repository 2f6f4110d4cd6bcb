package connector

import "github.com/ceyewan/bfametrics/xerrors"

// 连接器专用的哨兵错误
var (
	ErrNotConnected = xerrors.Wrap(xerrors.ErrUnavailable, "connector: not connected")
	ErrConnection   = xerrors.Wrap(xerrors.ErrUnavailable, "connector: connection failed")
	ErrConfig       = xerrors.Wrap(xerrors.ErrInvalidInput, "connector: invalid config")
	ErrHealthCheck  = xerrors.Wrap(xerrors.ErrUnavailable, "connector: health check failed")
)
