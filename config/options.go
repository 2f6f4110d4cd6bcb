package config

import (
	"strings"

	"github.com/ceyewan/bfametrics/clog"
)

// Config 加载器配置
type Config struct {
	Name      string         // 配置文件名称（不含扩展名），默认 "config"
	Paths     []string       // 配置文件搜索路径，默认 [".", "./config"]
	FileType  string         // 配置文件类型，默认 "yaml"
	EnvPrefix string         // 环境变量前缀，默认 "BFA"
	Defaults  map[string]any // 默认值，同时让仅由环境变量提供的 key 能被 Unmarshal 看到
	Logger    clog.Logger    // 加载过程日志，默认丢弃
}

// Option 配置选项
type Option func(*Config)

// WithConfigName 设置配置文件名称（不带扩展名）
func WithConfigName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithConfigPaths 设置配置文件搜索路径（覆盖默认值）
func WithConfigPaths(paths ...string) Option {
	return func(c *Config) {
		c.Paths = paths
	}
}

// WithConfigType 设置配置文件类型 (yaml, json, toml ...)
func WithConfigType(typ string) Option {
	return func(c *Config) {
		c.FileType = typ
	}
}

// WithEnvPrefix 设置环境变量前缀
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.EnvPrefix = prefix
	}
}

// WithLogger 设置加载过程使用的 Logger
func WithLogger(logger clog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithDefaults 设置默认值，key 使用 "." 分隔的路径
func WithDefaults(defaults map[string]any) Option {
	return func(c *Config) {
		if c.Defaults == nil {
			c.Defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			c.Defaults[k] = v
		}
	}
}

// setDefaults 填充默认值
func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "BFA"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
}
