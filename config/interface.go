// Package config 为 bfametrics 提供统一的配置加载能力，基于 Viper 实现。
//
// 配置来源与优先级（高到低）：
//
//	环境变量（BFA_ 前缀，"." 替换为 "_"） > .env 文件 > config.<BFA_ENV>.yaml > config.yaml > WithDefaults
//
// 基本使用：
//
//	loader := config.MustLoad(
//		config.WithConfigName("bfa-metrics"),
//		config.WithConfigPaths("./config"),
//		config.WithDefaults(map[string]any{"metrics.backend": "memory"}),
//	)
//
//	var cfg AppConfig
//	if err := loader.Unmarshal(&cfg); err != nil {
//		panic(err)
//	}
//
// 监听配置变化：
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for event := range ch {
//		logger.Info("config changed", clog.String("key", event.Key))
//	}
package config

import (
	"context"
	"time"
)

// Loader 定义配置加载器的核心行为
type Loader interface {
	// Load 从所有来源加载配置，并开始监听配置文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体（mapstructure 标签）
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置的有效性
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // 目前只有 "file"
	Timestamp time.Time
}
