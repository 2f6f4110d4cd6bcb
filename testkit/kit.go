// Package testkit 提供测试共用的依赖构造与容器辅助函数。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx      context.Context
	Logger   clog.Logger
	Registry *metrics.Memory
}

// NewKit 返回一个包含默认依赖的测试工具包
func NewKit(t *testing.T) *Kit {
	ctx, cancel := NewContext(t, 30*time.Second)
	t.Cleanup(cancel)
	return &Kit{
		Ctx:      ctx,
		Logger:   NewLogger(),
		Registry: NewRegistry(),
	}
}

// NewLogger 返回一个用于测试的 logger，开发环境格式，适合本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("bfametrics"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewRegistry 返回内存计数器注册表，可直接读取计数断言
func NewRegistry() *metrics.Memory {
	return metrics.NewMemory()
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)，用于生成互不冲突的 Key 与 Subject
func NewID() string {
	return uuid.New().String()[0:8]
}
