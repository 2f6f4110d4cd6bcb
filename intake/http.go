package intake

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/bfametrics/auth"
	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/idem"
	"github.com/ceyewan/bfametrics/metrics"
	"github.com/ceyewan/bfametrics/ratelimit"
	"github.com/ceyewan/bfametrics/trace"
	"github.com/ceyewan/bfametrics/xerrors"
)

// RouterOption 配置 HTTP 路由
type RouterOption func(*routerOptions)

type routerOptions struct {
	httpMetrics *metrics.HTTPServerMetrics
	checks      []connector.Connector
	timeout     time.Duration
	limiter     ratelimit.Limiter
	limitCfg    *ratelimit.Config
	auth        auth.Authenticator
	service     string
}

// WithHTTPMetrics 为路由挂载 HTTP RED 指标中间件
func WithHTTPMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(o *routerOptions) {
		o.httpMetrics = m
	}
}

// WithHealthChecks /healthz 额外检查这些连接器
func WithHealthChecks(conns ...connector.Connector) RouterOption {
	return func(o *routerOptions) {
		o.checks = append(o.checks, conns...)
	}
}

// WithRequestTimeout 设置单请求处理超时
func WithRequestTimeout(d time.Duration) RouterOption {
	return func(o *routerOptions) {
		o.timeout = d
	}
}

// WithRateLimit 对 /v1 下的接口按配置限流，cfg 决定默认规则与限流键
func WithRateLimit(limiter ratelimit.Limiter, cfg *ratelimit.Config) RouterOption {
	return func(o *routerOptions) {
		o.limiter = limiter
		o.limitCfg = cfg
	}
}

// WithAuth 要求 /v1 下的接口携带 JWT：上报事件需要 reporter 角色，登记原因需要 admin 角色
func WithAuth(a auth.Authenticator) RouterOption {
	return func(o *routerOptions) {
		o.auth = a
	}
}

// WithTracing 为每个请求创建服务端 Span，service 为空时不启用
func WithTracing(service string) RouterOption {
	return func(o *routerOptions) {
		o.service = service
	}
}

// NewRouter 构建 HTTP 路由：
//
//	POST /v1/events    上报一次失败事件 (JSON 或 msgpack)
//	POST /v1/causes    预注册一个原因
//	GET  /v1/counters  查看计数快照，支持 ?prefix= 过滤
//	GET  /healthz      健康检查
//
// 限流与认证只作用于 /v1，/healthz 始终开放。
func NewRouter(h *Handler, registry metrics.Registry, opts ...RouterOption) *gin.Engine {
	o := &routerOptions{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(o)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if o.service != "" {
		r.Use(trace.GinMiddleware(o.service))
	}
	r.Use(metrics.GinHTTPMiddleware(o.httpMetrics))

	api := &httpAPI{handler: h, registry: registry, opts: o}
	v1 := r.Group("/v1")
	if o.limiter != nil && o.limitCfg != nil {
		limit := o.limitCfg.Limit()
		v1.Use(ratelimit.GinMiddleware(o.limiter, &ratelimit.GinMiddlewareOptions{
			KeyFunc:     ratelimit.KeyFuncFor(o.limitCfg),
			LimitFunc:   func(*gin.Context) ratelimit.Limit { return limit },
			WithHeaders: true,
		}))
	}
	requireRole := func(string) gin.HandlerFunc { return func(c *gin.Context) { c.Next() } }
	if o.auth != nil {
		v1.Use(o.auth.GinMiddleware())
		requireRole = func(role string) gin.HandlerFunc { return auth.RequireRoles(role) }
	}
	v1.POST("/events", requireRole(auth.RoleReporter), api.postEvent)
	v1.POST("/causes", requireRole(auth.RoleAdmin), api.postCause)
	v1.GET("/counters", api.getCounters)
	r.GET("/healthz", api.healthz)
	return r
}

type httpAPI struct {
	handler  *Handler
	registry metrics.Registry
	opts     *routerOptions
}

func (a *httpAPI) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	if a.opts.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), a.opts.timeout)
}

func (a *httpAPI) postEvent(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		abortWithError(c, xerrors.WithCode(err, xerrors.CodeDecode))
		return
	}

	ctx, cancel := a.withTimeout(c)
	defer cancel()

	ev, err := a.handler.HandleMessage(ctx, codecForContentType(c.ContentType()), data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": ev.ID})
}

func (a *httpAPI) postCause(c *gin.Context) {
	var rec CauseRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		abortWithError(c, xerrors.WithCode(err, xerrors.CodeDecode))
		return
	}

	ctx, cancel := a.withTimeout(c)
	defer cancel()

	if err := a.handler.RegisterCause(ctx, rec); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": rec.Name})
}

type counterView struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

func (a *httpAPI) getCounters(c *gin.Context) {
	ctx, cancel := a.withTimeout(c)
	defer cancel()

	snap, err := metrics.Snapshot(ctx, a.registry)
	if err != nil {
		abortWithError(c, xerrors.WithCode(err, xerrors.CodeRegistry))
		return
	}

	prefix := c.Query("prefix")
	counters := make([]counterView, 0, len(snap))
	for name, count := range snap {
		if strings.HasPrefix(name, prefix) {
			counters = append(counters, counterView{Name: name, Count: count})
		}
	}
	sort.Slice(counters, func(i, j int) bool { return counters[i].Name < counters[j].Name })
	c.JSON(http.StatusOK, gin.H{"counters": counters})
}

func (a *httpAPI) healthz(c *gin.Context) {
	ctx, cancel := a.withTimeout(c)
	defer cancel()

	failed := gin.H{}
	for _, conn := range a.opts.checks {
		if err := conn.HealthCheck(ctx); err != nil {
			failed[conn.Name()] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// abortWithError 按错误类型映射 HTTP 状态码
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case xerrors.GetCode(err) == xerrors.CodeDecode, errors.Is(err, xerrors.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, idem.ErrConcurrentRequest):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, xerrors.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	code := xerrors.GetCode(err)
	if code == "" && status == http.StatusBadRequest {
		code = xerrors.CodeInvalidInput
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}

// Server 托管 HTTP 路由的服务器
type Server struct {
	server *http.Server
	logger clog.Logger
}

// NewServer 创建 HTTP 服务器，Start 后开始监听
func NewServer(addr string, router http.Handler, logger clog.Logger) *Server {
	if logger == nil {
		logger = clog.Discard()
	}
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.WithNamespace("intake", "http"),
	}
}

// Start 在后台开始监听
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting intake http server", clog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("intake http server error", clog.Error(err))
		}
	}()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
