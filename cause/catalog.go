package cause

import (
	"slices"
	"strings"

	"github.com/ceyewan/bfametrics/xerrors"
)

// Catalog 启动时预注册的失败原因列表，按名称去重，保持首次出现的顺序
type Catalog struct {
	causes []*FailureCause
	index  map[string]int
}

// NewCatalog 由配置项构建目录。名称为空的条目返回 ErrInvalidInput；
// 同名条目合并分类，先出现者的 ID 与描述保留。
func NewCatalog(entries []*FailureCause) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(entries))}
	for i, e := range entries {
		if e == nil {
			continue
		}
		if strings.TrimSpace(e.Name) == "" {
			return nil, xerrors.Invalid("catalog entry %d has empty name", i)
		}
		c.add(e)
	}
	return c, nil
}

func (c *Catalog) add(e *FailureCause) {
	if i, ok := c.index[e.Name]; ok {
		existing := c.causes[i]
		for _, cat := range e.Categories {
			if !slices.Contains(existing.Categories, cat) {
				existing.Categories = append(existing.Categories, cat)
			}
		}
		return
	}

	cp := *e
	cp.Categories = slices.Clone(e.Categories)
	c.index[e.Name] = len(c.causes)
	c.causes = append(c.causes, &cp)
}

// Len 返回原因数量
func (c *Catalog) Len() int {
	return len(c.causes)
}

// Lookup 按名称查找，不存在时返回 ErrNotFound
func (c *Catalog) Lookup(name string) (*FailureCause, error) {
	i, ok := c.index[name]
	if !ok {
		return nil, xerrors.Wrapf(xerrors.ErrNotFound, "cause %q", name)
	}
	return c.causes[i], nil
}

// All 返回全部原因，调用方不应修改返回的记录
func (c *Catalog) All() []*FailureCause {
	return slices.Clone(c.causes)
}
