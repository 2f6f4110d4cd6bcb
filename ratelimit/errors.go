package ratelimit

import "github.com/ceyewan/bfametrics/xerrors"

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: config is nil")
	// ErrConnectorNil distributed 驱动缺少 Redis 连接器
	ErrConnectorNil = xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: redis connector is nil")
	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: key is empty")
	// ErrInvalidLimit 规则或令牌数无效
	ErrInvalidLimit = xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: invalid limit")
)
