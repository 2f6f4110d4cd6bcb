package db

import "github.com/ceyewan/bfametrics/xerrors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.Wrap(xerrors.ErrInvalidInput, "db: invalid config")

	// ErrConnectorRequired 未提供数据库连接器
	ErrConnectorRequired = xerrors.Wrap(xerrors.ErrInvalidInput, "db: connector is required")
)
