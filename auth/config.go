package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ceyewan/bfametrics/xerrors"
)

// Config 认证配置
type Config struct {
	// Enabled 供应用层判断是否挂载认证中间件
	Enabled bool `mapstructure:"enabled"`

	SecretKey     string   `mapstructure:"secret_key"`     // 签名密钥，至少 32 字符
	SigningMethod string   `mapstructure:"signing_method"` // 目前只支持 HS256
	Issuer        string   `mapstructure:"issuer"`         // 非空时校验 iss
	Audience      []string `mapstructure:"audience"`       // 非空时校验 aud

	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"` // 默认 24h

	// TokenLookup 形如 "header:Authorization" 或 "query:token"，留空时两者依次尝试
	TokenLookup   string `mapstructure:"token_lookup"`
	TokenHeadName string `mapstructure:"token_head_name"` // 默认 Bearer
}

func (c *Config) setDefaults() {
	if c.SigningMethod == "" {
		c.SigningMethod = jwt.SigningMethodHS256.Alg()
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 24 * time.Hour
	}
	if c.TokenHeadName == "" {
		c.TokenHeadName = "Bearer"
	}
}

func (c *Config) validate() error {
	if len(c.SecretKey) < 32 {
		return xerrors.Wrapf(ErrInvalidConfig, "secret_key must be at least 32 characters")
	}
	if c.SigningMethod != jwt.SigningMethodHS256.Alg() {
		return xerrors.Wrapf(ErrInvalidConfig, "unsupported signing_method: %s", c.SigningMethod)
	}
	if c.AccessTokenTTL < 0 {
		return xerrors.Wrapf(ErrInvalidConfig, "access_token_ttl must be positive")
	}
	return nil
}
