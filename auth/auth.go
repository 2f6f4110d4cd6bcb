// Package auth 为失败事件上报接口提供 JWT 认证。
//
// 支持：
//   - Token 签发与校验 (HS256)
//   - Gin 中间件，把 Claims 写入请求上下文
//   - 按角色授权：上报事件需要 RoleReporter，登记原因需要 RoleAdmin
//
// 基本使用：
//
//	authenticator, _ := auth.New(&auth.Config{SecretKey: "..."}, auth.WithLogger(logger))
//	token, _ := authenticator.GenerateToken(ctx, &auth.Claims{
//	    RegisteredClaims: jwt.RegisteredClaims{Subject: "jenkins-ci-1"},
//	    Roles:            []string{auth.RoleReporter},
//	})
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

// 内置角色
const (
	RoleReporter = "reporter"
	RoleAdmin    = "admin"
)

// MetricTokensValidated Token 校验次数 (Counter)，status 标签区分成功/失败
const MetricTokensValidated = "auth_tokens_validated_total"

// Authenticator 认证器
type Authenticator interface {
	// GenerateToken 签发 Token，未设置的 exp/iat/iss 按配置补齐
	GenerateToken(ctx context.Context, claims *Claims) (string, error)

	// ValidateToken 校验 Token 并返回 Claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)

	// GinMiddleware 返回 Gin 认证中间件
	GinMiddleware() gin.HandlerFunc
}

type jwtAuth struct {
	config    *Config
	logger    clog.Logger
	validated metric.Int64Counter
}

// New 创建 Authenticator
func New(cfg *Config, opts ...Option) (Authenticator, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	a := &jwtAuth{config: cfg, logger: o.logger}
	if o.meter != nil {
		counter, err := o.meter.Int64Counter(MetricTokensValidated, metric.WithDescription("Total number of tokens validated"))
		if err != nil {
			return nil, xerrors.Wrap(err, "create auth counter")
		}
		a.validated = counter
	}
	return a, nil
}

func (a *jwtAuth) GenerateToken(ctx context.Context, claims *Claims) (string, error) {
	if claims == nil {
		return "", ErrInvalidClaims
	}

	now := time.Now()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(a.config.AccessTokenTTL))
	}
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.Issuer == "" {
		claims.Issuer = a.config.Issuer
	}
	if len(claims.Audience) == 0 && len(a.config.Audience) > 0 {
		claims.Audience = a.config.Audience
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", xerrors.Wrap(err, "failed to sign token")
	}

	a.logger.InfoContext(ctx, "token generated",
		clog.String("subject", claims.Subject),
		clog.Strings("roles", claims.Roles))
	return signed, nil
}

func (a *jwtAuth) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{a.config.SigningMethod})}
	if a.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.config.Issuer))
	}
	for _, aud := range a.config.Audience {
		parserOpts = append(parserOpts, jwt.WithAudience(aud))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(a.config.SecretKey), nil
	}, parserOpts...)
	if err != nil {
		var errType string
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			errType, err = "expired", ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			errType, err = "invalid_signature", ErrInvalidSignature
		default:
			errType, err = "invalid_token", ErrInvalidToken
		}
		a.record(ctx, attribute.String("status", "error"), attribute.String("error_type", errType))
		a.logger.DebugContext(ctx, "token rejected", clog.String("error_type", errType))
		return nil, err
	}

	a.record(ctx, attribute.String("status", "success"))
	return claims, nil
}

func (a *jwtAuth) record(ctx context.Context, attrs ...attribute.KeyValue) {
	if a.validated != nil {
		a.validated.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// extractToken 按 TokenLookup 提取 Token，留空时依次尝试 Authorization 头与 ?token=
func (a *jwtAuth) extractToken(r *http.Request) (string, error) {
	if a.config.TokenLookup == "" {
		if tok, err := a.fromHeader(r, "Authorization"); !errors.Is(err, ErrMissingToken) {
			return tok, err
		}
		return fromQuery(r, "token")
	}

	source, key, ok := strings.Cut(a.config.TokenLookup, ":")
	if !ok {
		return "", ErrMissingToken
	}
	switch source {
	case "header":
		return a.fromHeader(r, key)
	case "query":
		return fromQuery(r, key)
	default:
		return "", ErrMissingToken
	}
}

func (a *jwtAuth) fromHeader(r *http.Request, key string) (string, error) {
	v := r.Header.Get(key)
	if v == "" {
		return "", ErrMissingToken
	}
	head, token, ok := strings.Cut(v, " ")
	if !ok || head != a.config.TokenHeadName || token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

func fromQuery(r *http.Request, key string) (string, error) {
	if v := r.URL.Query().Get(key); v != "" {
		return v, nil
	}
	return "", ErrMissingToken
}
