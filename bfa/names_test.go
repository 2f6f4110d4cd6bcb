package bfa

import (
	"slices"
	"testing"

	"github.com/ceyewan/bfametrics/cause"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a:b/c", "a:cb::c"},
		{"team/proj", "team::proj"},
		{"plain", "plain"},
		{"", ""},
		{"x::y", "x:c:cy"},
		{"//", "::::"},
		{"folder/job:branch", "folder::job:cbranch"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConstants(t *testing.T) {
	if JobCausePrefix != "jenkins_bfa.job_cause:_:" {
		t.Errorf("JobCausePrefix = %q", JobCausePrefix)
	}
	if JobCategoryPrefix != "jenkins_bfa.job_category:_:" {
		t.Errorf("JobCategoryPrefix = %q", JobCategoryPrefix)
	}
}

func TestNamesFor(t *testing.T) {
	tests := []struct {
		name  string
		cause cause.MetricData
		want  []string
	}{
		{
			name:  "cause with categories",
			cause: cause.New("OOM", "infra", "memory"),
			want:  []string{"jenkins_bfa.category.infra", "jenkins_bfa.category.memory", "jenkins_bfa.cause.OOM"},
		},
		{
			name:  "nil categories",
			cause: cause.New("Flaky test"),
			want:  []string{"jenkins_bfa.cause.Flaky test"},
		},
		{
			name:  "duplicate categories collapse",
			cause: cause.New("OOM", "infra", "infra"),
			want:  []string{"jenkins_bfa.category.infra", "jenkins_bfa.cause.OOM"},
		},
		{
			name:  "standalone names are not normalized",
			cause: cause.New("a:b/c", "x/y:z"),
			want:  []string{"jenkins_bfa.category.x/y:z", "jenkins_bfa.cause.a:b/c"},
		},
		{
			name:  "unknown sentinel",
			cause: cause.Unknown,
			want:  []string{"jenkins_bfa.cause.no matching cause"},
		},
		{
			name:  "nil cause",
			cause: nil,
			want:  []string{},
		},
		{
			name:  "typed nil cause",
			cause: (*cause.FailureCause)(nil),
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NamesFor(tt.cause).Sorted()
			if !slices.Equal(got, tt.want) {
				t.Errorf("NamesFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNamesForJob(t *testing.T) {
	got := NamesForJob(cause.New("OOM", "infra", "memory"), "team/proj").Sorted()
	want := []string{
		"jenkins_bfa.category.infra",
		"jenkins_bfa.category.memory",
		"jenkins_bfa.cause.OOM",
		"jenkins_bfa.job_category:_:team::proj:_:infra",
		"jenkins_bfa.job_category:_:team::proj:_:memory",
		"jenkins_bfa.job_cause:_:team::proj:_:OOM",
	}
	if !slices.Equal(got, want) {
		t.Errorf("NamesForJob() = %q\nwant %q", got, want)
	}
}

// TestNamesForJobNormalization 作业名与作业维度的分类名归一化，原因名不归一化
func TestNamesForJobNormalization(t *testing.T) {
	names := NamesForJob(cause.New("x:y", "a/b"), "f:g/h")

	for _, want := range []string{
		"jenkins_bfa.cause.x:y",
		"jenkins_bfa.category.a/b",
		"jenkins_bfa.job_cause:_:f:cg::h:_:x:y",
		"jenkins_bfa.job_category:_:f:cg::h:_:a::b",
	} {
		if !names.Contains(want) {
			t.Errorf("missing %q in %q", want, names.Sorted())
		}
	}
	if names.Len() != 4 {
		t.Errorf("Len() = %d, want 4", names.Len())
	}
}

// TestNamesForJobSuperset 作业维度的名称总是全局维度名称的超集
func TestNamesForJobSuperset(t *testing.T) {
	causes := []cause.MetricData{
		cause.New("OOM", "infra", "memory"),
		cause.New("Flaky test"),
		cause.Unknown,
		cause.New("a:b/c", "x:y", "p/q"),
	}
	for _, job := range []string{"", "job", "team/proj", "a:b/c"} {
		for _, c := range causes {
			global := NamesFor(c)
			scoped := NamesForJob(c, job)
			for name := range global {
				if !scoped.Contains(name) {
					t.Errorf("NamesForJob(%q, %q) missing %q", c.CauseName(), job, name)
				}
			}
			if want := global.Len() * 2; scoped.Len() != want {
				t.Errorf("NamesForJob(%q, %q).Len() = %d, want %d", c.CauseName(), job, scoped.Len(), want)
			}
		}
	}
}

func TestNameSet(t *testing.T) {
	s := NewNameSet("b", "a", "b")
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	s.Union(NewNameSet("c", "a"))
	if got := s.Sorted(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Sorted() = %v", got)
	}
	if s.Contains("d") {
		t.Error("Contains(d) = true")
	}
}
