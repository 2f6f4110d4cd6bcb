// Package bfa 将构建失败原因转换为计数器名称，并在注册表中累加。
//
// 名称格式与 Jenkins Build Failure Analyzer 导出的指标保持逐字节一致，
// 已有的看板与告警可以直接复用：
//
//	jenkins_bfa.cause.<cause>
//	jenkins_bfa.category.<category>
//	jenkins_bfa.job_cause:_:<job>:_:<cause>
//	jenkins_bfa.job_category:_:<job>:_:<category>
//
// 作业名以及作业维度中的分类名会经过 Normalize，原因名与独立的分类名保持原样。
package bfa

import (
	"maps"
	"slices"
	"strings"

	"github.com/ceyewan/bfametrics/cause"
)

// 命名常量
const (
	CausePrefix       = "jenkins_bfa.cause."
	CategoryPrefix    = "jenkins_bfa.category."
	FieldSeparator    = ":_:"
	JobCausePrefix    = "jenkins_bfa.job_cause" + FieldSeparator
	JobCategoryPrefix = "jenkins_bfa.job_category" + FieldSeparator
	ColonReplacer     = ":c"
	SlashReplacer     = "::"
)

// Normalize 先把 ":" 替换为 ":c"，再把 "/" 替换为 "::"。
// 顺序不可交换，否则 "::" 中的冒号会被再次替换。
func Normalize(s string) string {
	s = strings.ReplaceAll(s, ":", ColonReplacer)
	return strings.ReplaceAll(s, "/", SlashReplacer)
}

// NameSet 指标名集合
type NameSet map[string]struct{}

// NewNameSet 由若干名称构建集合
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}

// Union 把 other 并入 s
func (s NameSet) Union(other NameSet) {
	for n := range other {
		s[n] = struct{}{}
	}
}

func (s NameSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

func (s NameSet) Len() int {
	return len(s)
}

// Sorted 返回升序排列的名称
func (s NameSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// NamesFor 返回一个原因在全局维度下的指标名
func NamesFor(c cause.MetricData) NameSet {
	names := make(NameSet)
	if isNil(c) {
		return names
	}
	name := c.CauseName()
	names.Add(CausePrefix + name)
	for _, category := range c.CauseCategories() {
		names.Add(CategoryPrefix + category)
	}
	return names
}

// NamesForJob 返回 NamesFor 的全部名称，外加该作业维度下的原因与分类名称
func NamesForJob(c cause.MetricData, job string) NameSet {
	names := NamesFor(c)
	if isNil(c) {
		return names
	}
	scope := Normalize(job) + FieldSeparator
	names.Add(JobCausePrefix + scope + c.CauseName())
	for _, category := range c.CauseCategories() {
		names.Add(JobCategoryPrefix + scope + Normalize(category))
	}
	return names
}

func isNil(c cause.MetricData) bool {
	if c == nil {
		return true
	}
	fc, ok := c.(*cause.FailureCause)
	return ok && fc == nil
}
