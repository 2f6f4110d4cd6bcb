package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ceyewan/bfametrics/auth"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/metrics"
	"github.com/ceyewan/bfametrics/ratelimit"
	"github.com/ceyewan/bfametrics/xerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doRequest(t *testing.T, router http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPostEvent(t *testing.T) {
	h, registry := newTestHandler(t, Policy{JobMetrics: true}, WithIDGenerator(func() string { return "evt-42" }))
	router := NewRouter(h, registry)

	w := doRequest(t, router, http.MethodPost, "/v1/events", "application/json",
		[]byte(`{"job":"team/proj","causes":[{"name":"OOM","categories":["infra"]}]}`))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "evt-42", decodeBody(t, w)["id"])

	snap := snapshot(t, registry)
	assert.Equal(t, int64(1), snap["jenkins_bfa.cause.OOM"])
	assert.Equal(t, int64(1), snap["jenkins_bfa.job_category:_:team::proj:_:infra"])
}

func TestPostEventMsgpack(t *testing.T) {
	h, registry := newTestHandler(t, Policy{})
	router := NewRouter(h, registry)

	data, err := msgpack.Marshal(&Event{ID: "m1", Causes: []CauseRecord{{Name: "Timeout"}}})
	require.NoError(t, err)

	w := doRequest(t, router, http.MethodPost, "/v1/events", "application/msgpack", data)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, int64(1), snapshot(t, registry)["jenkins_bfa.cause.Timeout"])
}

func TestPostEventErrors(t *testing.T) {
	tests := []struct {
		name     string
		registry metrics.Registry
		body     string
		status   int
		code     string
	}{
		{name: "malformed", registry: metrics.NewMemory(), body: `{"causes":`, status: http.StatusBadRequest, code: xerrors.CodeDecode},
		{name: "empty cause name", registry: metrics.NewMemory(), body: `{"causes":[{"name":""}]}`, status: http.StatusBadRequest, code: xerrors.CodeInvalidInput},
		{name: "registry unavailable", registry: failingRegistry{err: connector.ErrNotConnected}, body: `{"causes":[{"name":"OOM"}]}`, status: http.StatusServiceUnavailable, code: xerrors.CodeRegistry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(newHandlerFor(t, tt.registry, Policy{}), tt.registry)
			w := doRequest(t, router, http.MethodPost, "/v1/events", "application/json", []byte(tt.body))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeBody(t, w)["code"])
		})
	}
}

func TestPostCause(t *testing.T) {
	h, registry := newTestHandler(t, Policy{})
	router := NewRouter(h, registry)

	w := doRequest(t, router, http.MethodPost, "/v1/causes", "application/json",
		[]byte(`{"name":"OOM","categories":["infra","memory"]}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, snapshot(t, registry), 3)

	w = doRequest(t, router, http.MethodPost, "/v1/causes", "application/json", []byte(`{"name":""}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCounters(t *testing.T) {
	h, registry := newTestHandler(t, Policy{JobMetrics: true})
	router := NewRouter(h, registry)
	require.NoError(t, h.Handle(context.Background(), &Event{Job: "nightly", Causes: []CauseRecord{{Name: "OOM"}}}))

	w := doRequest(t, router, http.MethodGet, "/v1/counters", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Counters []counterView `json:"counters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []counterView{
		{Name: "jenkins_bfa.cause.OOM", Count: 1},
		{Name: "jenkins_bfa.job_cause:_:nightly:_:OOM", Count: 1},
	}, body.Counters)

	w = doRequest(t, router, http.MethodGet, "/v1/counters?prefix=jenkins_bfa.job_", "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Counters, 1)
}

func TestHealthz(t *testing.T) {
	h, registry := newTestHandler(t, Policy{})

	w := doRequest(t, NewRouter(h, registry), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 未连接的连接器健康检查失败
	redisConn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:1"})
	require.NoError(t, err)
	w = doRequest(t, NewRouter(h, registry, WithHealthChecks(redisConn)), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decodeBody(t, w)["status"])
}

func TestRouterHTTPMetrics(t *testing.T) {
	registry, err := metrics.New(&metrics.Config{Backend: metrics.BackendPrometheus, ServiceName: "bfa-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Shutdown(context.Background()) })

	httpMetrics, err := metrics.NewHTTPServerMetrics(metrics.MeterOf(registry), "bfa-test")
	require.NoError(t, err)

	router := NewRouter(newHandlerFor(t, registry, Policy{}), registry, WithHTTPMetrics(httpMetrics))
	w := doRequest(t, router, http.MethodPost, "/v1/events", "application/json", []byte(`{"causes":[{"name":"OOM"}]}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, int64(1), snapshot(t, registry)["jenkins_bfa.cause.OOM"])
}

func TestRouterRateLimit(t *testing.T) {
	h, registry := newTestHandler(t, Policy{})

	cfg := &ratelimit.Config{Rate: 1, Burst: 1, KeyHeader: "X-Jenkins-Instance"}
	limiter, err := ratelimit.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })

	router := NewRouter(h, registry, WithRateLimit(limiter, cfg))
	post := func(instance string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader([]byte(`{"causes":[{"name":"OOM"}]}`)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Jenkins-Instance", instance)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusAccepted, post("ci-1").Code)
	w := post("ci-1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Burst"))
	assert.Equal(t, http.StatusAccepted, post("ci-2").Code)
	assert.Equal(t, int64(2), snapshot(t, registry)["jenkins_bfa.cause.OOM"], "被拒绝的事件不计数")

	// /healthz 不受限流
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/healthz", "", nil).Code)
	}
}

func TestRouterAuth(t *testing.T) {
	h, registry := newTestHandler(t, Policy{})

	authenticator, err := auth.New(&auth.Config{SecretKey: "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)
	token := func(roles ...string) string {
		tok, err := authenticator.GenerateToken(context.Background(), &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "jenkins-ci"},
			Roles:            roles,
		})
		require.NoError(t, err)
		return tok
	}

	router := NewRouter(h, registry, WithAuth(authenticator))
	do := func(path, bearer, body string) int {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	event := `{"causes":[{"name":"OOM"}]}`
	assert.Equal(t, http.StatusUnauthorized, do("/v1/events", "", event))
	assert.Equal(t, http.StatusForbidden, do("/v1/events", token(), event))
	assert.Equal(t, http.StatusAccepted, do("/v1/events", token(auth.RoleReporter), event))

	cause := `{"name":"Disk full","categories":["infra"]}`
	assert.Equal(t, http.StatusForbidden, do("/v1/causes", token(auth.RoleReporter), cause))
	assert.Equal(t, http.StatusCreated, do("/v1/causes", token(auth.RoleAdmin), cause))

	snap := snapshot(t, registry)
	assert.Equal(t, int64(1), snap["jenkins_bfa.cause.OOM"])
	assert.Contains(t, snap, "jenkins_bfa.cause.Disk full")

	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/healthz", "", nil).Code, "healthz stays open")
}

func TestRouterTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	h, registry := newTestHandler(t, Policy{})
	router := NewRouter(h, registry, WithTracing("bfa-test"))
	w := doRequest(t, router, http.MethodPost, "/v1/events", "application/json", []byte(`{"causes":[{"name":"OOM"}]}`))
	require.Equal(t, http.StatusAccepted, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/v1/events")
}
