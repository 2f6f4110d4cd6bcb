package bfa

import (
	"context"

	"github.com/ceyewan/bfametrics/cause"
	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/metrics"
	"github.com/ceyewan/bfametrics/xerrors"
)

// Manager 把失败原因落到注册表中的计数器上。
//
// Manager 自身无状态也不加锁，并发安全性完全来自注册表。
// 注册表返回的错误原样返回，首个错误即中止，已完成的递增不回滚。
type Manager struct {
	registry metrics.Registry
	logger   clog.Logger
}

// NewManager 创建 Manager，registry 不能为空
func NewManager(registry metrics.Registry, opts ...Option) (*Manager, error) {
	if registry == nil {
		return nil, xerrors.Invalid("counter registry is nil")
	}
	m := &Manager{registry: registry, logger: clog.Discard()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Register 为原因预先创建全局维度的计数器，初始值为 0，从不递增。
// 已存在的名称跳过，重复调用没有额外效果。
func (m *Manager) Register(ctx context.Context, c cause.MetricData) error {
	return m.RegisterAll(ctx, []cause.MetricData{c})
}

// RegisterAll 同 Register，整批原因只读取一次注册表已有的名称
func (m *Manager) RegisterAll(ctx context.Context, causes []cause.MetricData) error {
	names := make(NameSet)
	for _, c := range causes {
		names.Union(NamesFor(c))
	}
	if names.Len() == 0 {
		return nil
	}

	existing, err := m.registry.CounterNames(ctx)
	if err != nil {
		return err
	}
	known := NewNameSet(existing...)

	for _, name := range names.Sorted() {
		if known.Contains(name) {
			continue
		}
		if _, err := m.registry.Counter(ctx, name); err != nil {
			return err
		}
		m.logger.Debug("counter registered", clog.String("metric", name))
	}
	return nil
}

// IncCounters 为一次失败的全部原因递增全局维度计数器。
// squash 为 true 时整批去重，每个名称只加 1；否则逐个原因递增，不跨原因去重。
func (m *Manager) IncCounters(ctx context.Context, causes []cause.MetricData, squash bool) error {
	return m.increment(ctx, causes, squash, NamesFor)
}

// IncJobCounters 同 IncCounters，额外递增 job 维度的计数器
func (m *Manager) IncJobCounters(ctx context.Context, causes []cause.MetricData, squash bool, job string) error {
	return m.increment(ctx, causes, squash, func(c cause.MetricData) NameSet {
		return NamesForJob(c, job)
	})
}

func (m *Manager) increment(ctx context.Context, causes []cause.MetricData, squash bool, derive func(cause.MetricData) NameSet) error {
	if len(causes) == 0 {
		return nil
	}
	if squash {
		return m.incrementSquashed(ctx, causes, derive)
	}
	return m.incrementEach(ctx, causes, derive)
}

// incrementSquashed 先对整批原因的名称取并集，再逐个递增
func (m *Manager) incrementSquashed(ctx context.Context, causes []cause.MetricData, derive func(cause.MetricData) NameSet) error {
	union := make(NameSet)
	for _, c := range causes {
		union.Union(derive(c))
	}
	if err := m.incNames(ctx, union); err != nil {
		return err
	}
	m.logger.Debug("counters incremented",
		clog.Int("causes", len(causes)), clog.Int("names", union.Len()), clog.Bool("squash", true))
	return nil
}

// incrementEach 每个原因使用各自的名称集合，原因之间相同的名称会被重复递增
func (m *Manager) incrementEach(ctx context.Context, causes []cause.MetricData, derive func(cause.MetricData) NameSet) error {
	total := 0
	for _, c := range causes {
		names := derive(c)
		if err := m.incNames(ctx, names); err != nil {
			return err
		}
		total += names.Len()
	}
	m.logger.Debug("counters incremented",
		clog.Int("causes", len(causes)), clog.Int("names", total), clog.Bool("squash", false))
	return nil
}

func (m *Manager) incNames(ctx context.Context, names NameSet) error {
	for _, name := range names.Sorted() {
		counter, err := m.registry.Counter(ctx, name)
		if err != nil {
			return err
		}
		if err := counter.Inc(ctx); err != nil {
			return err
		}
	}
	return nil
}
