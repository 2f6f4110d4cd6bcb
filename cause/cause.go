// Package cause 定义构建失败原因及其分类。
//
// 失败原因由外部知识库维护，本服务只读取名称与分类用于推导指标名。
package cause

// MetricData 推导指标名所需的只读视图
type MetricData interface {
	// CauseName 原因名称，自由文本
	CauseName() string
	// CauseCategories 分类列表，nil 视为空
	CauseCategories() []string
}

// UnknownName 未匹配到任何原因时使用的名称
const UnknownName = "no matching cause"

// Unknown 表示一次没有任何原因匹配的失败，没有分类
var Unknown MetricData = &FailureCause{Name: UnknownName}

// FailureCause 一条失败原因记录，nil 指针可安全调用
type FailureCause struct {
	ID          string   `json:"id,omitempty" msgpack:"id,omitempty" mapstructure:"id"`
	Name        string   `json:"name" msgpack:"name" mapstructure:"name"`
	Description string   `json:"description,omitempty" msgpack:"description,omitempty" mapstructure:"description"`
	Categories  []string `json:"categories,omitempty" msgpack:"categories,omitempty" mapstructure:"categories"`
}

// New 创建失败原因
func New(name string, categories ...string) *FailureCause {
	return &FailureCause{Name: name, Categories: categories}
}

func (c *FailureCause) CauseName() string {
	if c == nil {
		return ""
	}
	return c.Name
}

func (c *FailureCause) CauseCategories() []string {
	if c == nil {
		return nil
	}
	return c.Categories
}
