// Package metrics 为 bfametrics 提供按名称寻址的计数器注册表。
//
// 失败原因指标的名称由 bfa 包推导（如 "jenkins_bfa.cause.OOM"），
// 含有点号、冒号与空格，不是合法的 Prometheus 指标名，因此 Registry
// 以任意字符串为键管理计数器，由后端决定如何落地：
//
//   - memory: 进程内计数，默认后端，也是测试使用的替身
//   - prometheus: OpenTelemetry + Prometheus 导出，名称作为 metric 属性
//   - redis: 多实例共享的 Hash，适合横向扩展的接入服务
//   - sql: MySQL 或 SQLite 中的一张表，计数跨重启保留
//
// 快速开始：
//
//	registry, err := metrics.New(&metrics.Config{
//		Backend:     metrics.BackendPrometheus,
//		ServiceName: "bfa-metrics",
//		Port:        9464,
//		Path:        "/metrics",
//	}, metrics.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer registry.Shutdown(ctx)
//
//	counter, _ := registry.Counter(ctx, "jenkins_bfa.cause.OOM")
//	_ = counter.Inc(ctx)
package metrics

import "context"

// Counter 单个命名计数器，只增不减
type Counter interface {
	// Inc 将计数器增加 1
	Inc(ctx context.Context) error

	// Count 返回当前计数值
	Count(ctx context.Context) (int64, error)
}

// Registry 计数器注册表，所有方法并发安全
type Registry interface {
	// CounterNames 返回当前已存在的全部计数器名称，顺序不保证
	CounterNames(ctx context.Context) ([]string, error)

	// Counter 返回指定名称的计数器，不存在时以 0 创建
	Counter(ctx context.Context, name string) (Counter, error)

	// Shutdown 释放后端资源，之后不应再使用
	Shutdown(ctx context.Context) error
}
