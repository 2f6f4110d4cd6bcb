package metrics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

// TestNew 测试按配置创建 Registry
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		opts    []Option
		wantErr bool
	}{
		{name: "nil config", cfg: nil},
		{name: "memory", cfg: &Config{Backend: "memory"}},
		{name: "backend is case insensitive", cfg: &Config{Backend: " Memory "}},
		{name: "prometheus without server", cfg: &Config{Backend: BackendPrometheus, ServiceName: "test"}},
		{name: "with logger", cfg: NewDevDefaultConfig("test"), opts: []Option{WithLogger(clog.Discard())}},
		{name: "unknown backend", cfg: &Config{Backend: "statsd"}, wantErr: true},
		{name: "bad port", cfg: &Config{Port: 70000}, wantErr: true},
		{name: "bad path", cfg: &Config{Path: "metrics"}, wantErr: true},
		{name: "redis without connector", cfg: &Config{Backend: BackendRedis}, wantErr: true},
		{name: "sql without db", cfg: &Config{Backend: BackendSQL}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.cfg, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, xerrors.ErrInvalidInput) {
					t.Errorf("New() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err := r.Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	if cfg.Backend != BackendMemory || cfg.Path != "/metrics" || cfg.KeyPrefix != "bfa" || cfg.CacheSize != 10000 {
		t.Errorf("defaults = %+v", cfg)
	}

	prod := NewProdDefaultConfig("bfa-metrics", "v1.2.3")
	if prod.Backend != BackendPrometheus || !prod.RuntimeMetrics || prod.Port != 9464 {
		t.Errorf("prod defaults = %+v", prod)
	}
}

func TestMust(t *testing.T) {
	if r := Must(nil); r == nil {
		t.Fatal("Must(nil) returned nil")
	}
	defer func() {
		if recover() == nil {
			t.Error("Must() with invalid config did not panic")
		}
	}()
	Must(&Config{Backend: "statsd"})
}

// TestMemoryCounter 测试内存后端的创建与计数
func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	r := NewMemory()

	names, _ := r.CounterNames(ctx)
	if len(names) != 0 {
		t.Fatalf("new registry has names %v", names)
	}

	c, err := r.Counter(ctx, "jenkins_bfa.cause.OOM")
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	if n, _ := c.Count(ctx); n != 0 {
		t.Errorf("new counter = %d, want 0", n)
	}

	_ = c.Inc(ctx)
	again, _ := r.Counter(ctx, "jenkins_bfa.cause.OOM")
	_ = again.Inc(ctx)

	if n, _ := c.Count(ctx); n != 2 {
		t.Errorf("counter = %d, want 2 (same counter returned for same name)", n)
	}

	_, _ = r.Counter(ctx, "jenkins_bfa.category.infra")
	names, _ = r.CounterNames(ctx)
	sort.Strings(names)
	want := []string{"jenkins_bfa.category.infra", "jenkins_bfa.cause.OOM"}
	if len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("CounterNames() = %v, want %v", names, want)
	}
}

// TestMemoryConcurrentInc 测试并发递增不丢失
func TestMemoryConcurrentInc(t *testing.T) {
	ctx := context.Background()
	r := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c, _ := r.Counter(ctx, "jenkins_bfa.cause.Flaky test")
				_ = c.Inc(ctx)
			}
		}()
	}
	wg.Wait()

	snap, err := Snapshot(ctx, r)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap["jenkins_bfa.cause.Flaky test"] != 5000 {
		t.Errorf("count = %d, want 5000", snap["jenkins_bfa.cause.Flaky test"])
	}
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	r := Discard()

	c, err := r.Counter(ctx, "x")
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	_ = c.Inc(ctx)
	if n, _ := c.Count(ctx); n != 0 {
		t.Errorf("discard count = %d, want 0", n)
	}
	if names, _ := r.CounterNames(ctx); len(names) != 0 {
		t.Errorf("discard names = %v", names)
	}
}

func TestHTTPStatusClass(t *testing.T) {
	tests := []struct {
		status  int
		class   string
		outcome string
	}{
		{200, "2xx", "success"},
		{302, "3xx", "success"},
		{400, "4xx", "error"},
		{503, "5xx", "error"},
		{42, "unknown", "error"},
	}
	for _, tt := range tests {
		if got := HTTPStatusClass(tt.status); got != tt.class {
			t.Errorf("HTTPStatusClass(%d) = %q, want %q", tt.status, got, tt.class)
		}
		if got := HTTPOutcome(tt.status); got != tt.outcome {
			t.Errorf("HTTPOutcome(%d) = %q, want %q", tt.status, got, tt.outcome)
		}
	}
}
