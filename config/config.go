package config

import (
	"context"

	"github.com/ceyewan/bfametrics/xerrors"
)

// New 创建配置加载器，cfg 为 nil 时使用默认配置
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.setDefaults()
	return newLoader(cfg), nil
}

// Load 创建加载器并立即加载
func Load(ctx context.Context, opts ...Option) (Loader, error) {
	l, err := New(nil, opts...)
	if err != nil {
		return nil, err
	}
	if err := l.Load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// MustLoad 类似 Load，但出错时 panic，仅用于初始化阶段
func MustLoad(opts ...Option) Loader {
	return xerrors.Must(Load(context.Background(), opts...))
}
