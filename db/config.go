package db

import (
	"strings"
	"time"

	"gorm.io/gorm/logger"

	"github.com/ceyewan/bfametrics/xerrors"
)

// Config DB 组件配置
type Config struct {
	// LogLevel SQL 日志级别：silent、error、warn（默认）、info
	LogLevel string `mapstructure:"log_level"`

	// SlowThreshold 超过该耗时的 SQL 以 warn 记录 (默认: 200ms)
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`

	// EnableTracing 通过 otelgorm 为每条 SQL 创建 Span
	EnableTracing bool `mapstructure:"enable_tracing"`
}

func (c *Config) setDefaults() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
}

func (c *Config) validate() error {
	if _, ok := logLevels[c.LogLevel]; !ok {
		return xerrors.Wrapf(ErrInvalidConfig, "unknown log_level %q", c.LogLevel)
	}
	return nil
}

var logLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}
