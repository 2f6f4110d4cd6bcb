package cause

import (
	"errors"
	"testing"

	"github.com/ceyewan/bfametrics/xerrors"
)

func TestFailureCauseNilSafe(t *testing.T) {
	var c *FailureCause
	if c.CauseName() != "" {
		t.Errorf("nil CauseName() = %q", c.CauseName())
	}
	if c.CauseCategories() != nil {
		t.Errorf("nil CauseCategories() = %v", c.CauseCategories())
	}
}

func TestUnknown(t *testing.T) {
	if Unknown.CauseName() != "no matching cause" {
		t.Errorf("Unknown name = %q", Unknown.CauseName())
	}
	if len(Unknown.CauseCategories()) != 0 {
		t.Errorf("Unknown categories = %v, want none", Unknown.CauseCategories())
	}
}

func TestNew(t *testing.T) {
	c := New("OOM", "infra", "memory")
	if c.CauseName() != "OOM" || len(c.CauseCategories()) != 2 {
		t.Errorf("New() = %+v", c)
	}
	if New("Flaky").CauseCategories() != nil {
		t.Error("New() without categories should keep nil")
	}
}

func TestCatalog(t *testing.T) {
	src := []*FailureCause{
		{ID: "1", Name: "OOM", Description: "out of memory", Categories: []string{"infra"}},
		nil,
		{Name: "Flaky test"},
		{ID: "3", Name: "OOM", Categories: []string{"memory", "infra"}},
	}

	catalog, err := NewCatalog(src)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	if catalog.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", catalog.Len())
	}

	oom, err := catalog.Lookup("OOM")
	if err != nil {
		t.Fatalf("Lookup(OOM) error = %v", err)
	}
	if oom.ID != "1" || oom.Description != "out of memory" {
		t.Errorf("first entry should win: %+v", oom)
	}
	if len(oom.Categories) != 2 || oom.Categories[0] != "infra" || oom.Categories[1] != "memory" {
		t.Errorf("merged categories = %v, want [infra memory]", oom.Categories)
	}
	// 合并不应修改输入
	if len(src[0].Categories) != 1 {
		t.Errorf("input mutated: %v", src[0].Categories)
	}

	all := catalog.All()
	if all[0].Name != "OOM" || all[1].Name != "Flaky test" {
		t.Errorf("All() order = [%s %s]", all[0].Name, all[1].Name)
	}

	if _, err := catalog.Lookup("Disk full"); !errors.Is(err, xerrors.ErrNotFound) {
		t.Errorf("Lookup(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCatalogEmptyName(t *testing.T) {
	_, err := NewCatalog([]*FailureCause{{Name: "  "}})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("NewCatalog() error = %v, want ErrInvalidInput", err)
	}
}
