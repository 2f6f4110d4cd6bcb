package intake

import (
	"github.com/ceyewan/bfametrics/cause"
	"github.com/ceyewan/bfametrics/xerrors"
)

// Event 一次构建失败的分析结果
type Event struct {
	ID     string        `json:"id,omitempty" msgpack:"id,omitempty"`
	Job    string        `json:"job,omitempty" msgpack:"job,omitempty"`
	Causes []CauseRecord `json:"causes" msgpack:"causes"`
	// Squash 覆盖默认策略，nil 表示沿用 Policy.Squash
	Squash *bool `json:"squash,omitempty" msgpack:"squash,omitempty"`
}

// CauseRecord 事件中的单个失败原因
type CauseRecord struct {
	Name       string   `json:"name" msgpack:"name"`
	Categories []string `json:"categories,omitempty" msgpack:"categories,omitempty"`
}

func (r CauseRecord) validate() error {
	if r.Name == "" {
		return xerrors.Invalid("cause name is empty")
	}
	return nil
}

// toFailureCause 转换为 FailureCause。记录未带分类时从目录补全。
func (r CauseRecord) toFailureCause(catalog *cause.Catalog) *cause.FailureCause {
	fc := cause.New(r.Name, r.Categories...)
	if len(r.Categories) > 0 || catalog == nil {
		return fc
	}
	if known, err := catalog.Lookup(r.Name); err == nil {
		fc.ID = known.ID
		fc.Categories = known.Categories
	}
	return fc
}

// SquashOr 返回事件的 squash 覆盖值，未指定时返回 def
func (e *Event) SquashOr(def bool) bool {
	if e.Squash == nil {
		return def
	}
	return *e.Squash
}
