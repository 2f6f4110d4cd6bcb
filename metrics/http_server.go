package metrics

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ceyewan/bfametrics/xerrors"
)

// 接入服务自身的 HTTP 指标，与失败原因计数器共用一个 Meter
const (
	MetricHTTPRequests        = "http_server_requests_total"
	MetricHTTPDurationSeconds = "http_server_request_duration_seconds"

	// UnknownRoute 未命中路由时的取值，原始路径会造成高基数
	UnknownRoute = "unknown"
)

var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// MeterOf 返回 Registry 背后的 OTel Meter，没有导出链路的后端返回 noop Meter
func MeterOf(r Registry) metric.Meter {
	if mp, ok := r.(interface{ Meter() metric.Meter }); ok {
		return mp.Meter()
	}
	return noop.NewMeterProvider().Meter(instrumentationName)
}

// HTTPServerMetrics 按 service/method/route/status_class 记录请求数与耗时
type HTTPServerMetrics struct {
	service  attribute.KeyValue
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewHTTPServerMetrics 基于 Meter 创建 HTTP RED 指标，buckets 为空时使用默认分桶
func NewHTTPServerMetrics(m metric.Meter, service string, buckets ...float64) (*HTTPServerMetrics, error) {
	if m == nil {
		return nil, xerrors.Invalid("meter is nil")
	}
	if service = strings.TrimSpace(service); service == "" {
		service = "bfa-metrics"
	}
	if len(buckets) == 0 {
		buckets = httpDurationBuckets
	}

	requests, err := m.Int64Counter(MetricHTTPRequests, metric.WithDescription("Total number of HTTP requests."))
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request counter")
	}
	duration, err := m.Float64Histogram(MetricHTTPDurationSeconds,
		metric.WithDescription("HTTP request duration in seconds."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request duration histogram")
	}
	return &HTTPServerMetrics{
		service:  attribute.String("service", service),
		requests: requests,
		duration: duration,
	}, nil
}

// Observe 记录一次请求，m 为 nil 时忽略
func (m *HTTPServerMetrics) Observe(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = UnknownRoute
	}
	attrs := metric.WithAttributes(
		m.service,
		attribute.String("method", strings.ToUpper(method)),
		attribute.String("route", route),
		attribute.String("status_class", HTTPStatusClass(status)),
		attribute.String("outcome", HTTPOutcome(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// GinHTTPMiddleware 以路由模板为 route 标签记录请求，httpMetrics 为 nil 时直接放行
func GinHTTPMiddleware(httpMetrics *HTTPServerMetrics) gin.HandlerFunc {
	if httpMetrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		httpMetrics.Observe(c.Request.Context(), c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// HTTPStatusClass 返回状态码所属类别：2xx、4xx 等，越界时为 unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 2xx 与 3xx 为 success，其余为 error
func HTTPOutcome(status int) string {
	if status >= 200 && status < 400 {
		return "success"
	}
	return "error"
}
