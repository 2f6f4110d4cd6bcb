package idem

import (
	"time"

	"github.com/ceyewan/bfametrics/xerrors"
)

// DriverType 存储后端类型
type DriverType string

const (
	// DriverRedis 使用 Redis，多实例共享
	DriverRedis DriverType = "redis"
	// DriverMemory 使用进程内缓存，仅单机
	DriverMemory DriverType = "memory"
)

// Config 幂等组件配置
type Config struct {
	// Enabled 供应用层判断是否启用去重
	Enabled bool `mapstructure:"enabled"`

	// Driver 后端类型: "redis" | "memory" (默认 "memory")
	Driver DriverType `mapstructure:"driver"`

	// Prefix 存储键前缀 (默认: "bfa:idem:")
	Prefix string `mapstructure:"prefix"`

	// DefaultTTL 完成标记有效期 (默认: 24h)，过期后同一键可再次执行
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// LockTTL 处理中锁的有效期 (默认: 30s)，防止进程崩溃后键被永久占用
	LockTTL time.Duration `mapstructure:"lock_ttl"`

	// Capacity memory 后端最多保留的键数 (默认: 100000)
	Capacity int `mapstructure:"capacity"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Prefix == "" {
		c.Prefix = "bfa:idem:"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 24 * time.Hour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.Capacity <= 0 {
		c.Capacity = 100000
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverRedis, DriverMemory:
		return nil
	default:
		return xerrors.Invalid("idem: unsupported driver %q", c.Driver)
	}
}
