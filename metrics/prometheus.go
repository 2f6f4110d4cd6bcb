package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

const (
	// FailureCounterName OTel 计数器名称，Prometheus 中暴露为 bfa_failure_counter_total
	FailureCounterName = "bfa_failure_counter"
	// AttrMetric 承载失败原因指标名称的属性
	AttrMetric = "metric"

	instrumentationName = "github.com/ceyewan/bfametrics/metrics"
)

// promRegistry 以一个 OTel Int64Counter 承载所有命名计数器。
// counters 保存本地镜像，用于 CounterNames 与 Count。
type promRegistry struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	counter  metric.Int64Counter
	gatherer *prometheus.Registry
	server   *http.Server
	logger   clog.Logger

	mu       sync.RWMutex
	counters map[string]*promCounter
}

type promCounter struct {
	name    string
	attrs   metric.MeasurementOption
	counter metric.Int64Counter
	value   atomic.Int64
}

func (c *promCounter) Inc(ctx context.Context) error {
	c.counter.Add(ctx, 1, c.attrs)
	c.value.Add(1)
	return nil
}

func (c *promCounter) Count(context.Context) (int64, error) {
	return c.value.Load(), nil
}

func newPrometheus(cfg *Config, logger clog.Logger) (*promRegistry, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to create resource")
	}

	// 每个 Registry 使用独立的 prometheus.Registry，避免重复注册全局收集器
	gatherer := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(gatherer))
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to create prometheus exporter")
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	meter := mp.Meter(instrumentationName)

	counter, err := meter.Int64Counter(FailureCounterName,
		metric.WithDescription("Build failures per failure cause, category and job."),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, xerrors.Wrap(err, "failed to create failure counter")
	}

	if cfg.RuntimeMetrics {
		if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
			_ = mp.Shutdown(context.Background())
			return nil, xerrors.Wrap(err, "failed to start runtime metrics")
		}
		gatherer.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	r := &promRegistry{
		provider: mp,
		meter:    meter,
		counter:  counter,
		gatherer: gatherer,
		logger:   logger,
		counters: make(map[string]*promCounter),
	}

	if cfg.Port > 0 {
		r.serve(cfg.Port, cfg.Path)
	}
	return r, nil
}

func (r *promRegistry) serve(port int, path string) {
	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())
	r.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		r.logger.Info("starting prometheus metrics server", clog.String("addr", addr), clog.String("path", path))
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("prometheus server error", clog.Error(err))
		}
	}()
}

// Handler 返回 Prometheus 文本格式的暴露端点
func (r *promRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Meter 返回底层 OTel Meter，供 HTTP 等自观测指标复用同一导出链路
func (r *promRegistry) Meter() metric.Meter {
	return r.meter
}

func (r *promRegistry) CounterNames(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	return names, nil
}

// Counter 首次出现的名称以 Add(0) 物化，使序列以 0 出现在导出结果中
func (r *promRegistry) Counter(ctx context.Context, name string) (Counter, error) {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c, nil
	}

	c = &promCounter{
		name:    name,
		attrs:   metric.WithAttributeSet(attribute.NewSet(attribute.String(AttrMetric, name))),
		counter: r.counter,
	}
	c.counter.Add(ctx, 0, c.attrs)
	r.counters[name] = c
	return c, nil
}

func (r *promRegistry) Shutdown(ctx context.Context) error {
	var serverErr error
	if r.server != nil {
		serverErr = r.server.Shutdown(ctx)
	}
	return xerrors.Combine(serverErr, r.provider.Shutdown(ctx))
}
