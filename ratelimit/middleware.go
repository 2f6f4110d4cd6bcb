package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GinMiddlewareOptions Gin 限流中间件选项
type GinMiddlewareOptions struct {
	// KeyFunc 提取限流键，为 nil 时使用客户端 IP；返回空字符串时放行
	KeyFunc func(*gin.Context) string

	// LimitFunc 返回本次请求适用的规则，规则无效时放行
	LimitFunc func(*gin.Context) Limit

	// WithHeaders 在响应中写入 X-RateLimit-Limit / X-RateLimit-Burst
	WithHeaders bool
}

// GinMiddleware 创建 Gin 限流中间件，超限返回 429。
// 限流器出错时放行，事件上报不因 Redis 抖动而失败。
func GinMiddleware(limiter Limiter, opts *GinMiddlewareOptions) gin.HandlerFunc {
	if opts == nil {
		opts = &GinMiddlewareOptions{}
	}
	keyFunc := opts.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIPKey
	}
	limitFunc := opts.LimitFunc

	return func(c *gin.Context) {
		if limiter == nil || limitFunc == nil {
			c.Next()
			return
		}
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}
		limit := limitFunc(c)
		if !limit.valid() {
			c.Next()
			return
		}

		if opts.WithHeaders {
			c.Header("X-RateLimit-Limit", strconv.FormatFloat(limit.Rate, 'f', -1, 64))
			c.Header("X-RateLimit-Burst", strconv.Itoa(limit.Burst))
		}

		allowed, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// ClientIPKey 以客户端 IP 作为限流键
func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// HeaderKey 以请求头的值作为限流键，头缺失时回退到客户端 IP
func HeaderKey(header string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		if v := c.GetHeader(header); v != "" {
			return "h:" + v
		}
		return ClientIPKey(c)
	}
}

// KeyFuncFor 按配置选择限流键
func KeyFuncFor(cfg *Config) func(*gin.Context) string {
	if cfg != nil && cfg.KeyHeader != "" {
		return HeaderKey(cfg.KeyHeader)
	}
	return ClientIPKey
}
