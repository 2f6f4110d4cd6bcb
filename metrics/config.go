package metrics

import (
	"strings"

	"github.com/ceyewan/bfametrics/xerrors"
)

// 支持的后端
const (
	BackendMemory     = "memory"
	BackendPrometheus = "prometheus"
	BackendRedis      = "redis"
	BackendSQL        = "sql"
)

// Config 计数器注册表配置
//
// 典型配置示例（YAML）：
//
//	metrics:
//	  backend: prometheus
//	  service_name: bfa-metrics
//	  version: v1.0.0
//	  port: 9464
//	  path: /metrics
//	  runtime_metrics: true
type Config struct {
	// Backend 后端类型：memory（默认）、prometheus、redis
	Backend string `mapstructure:"backend"`

	// ServiceName 与 Version 写入 OpenTelemetry Resource（prometheus 后端）
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`

	// Port 大于 0 时启动 HTTP 服务暴露 Path（prometheus 后端）
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`

	// RuntimeMetrics 同时导出 Go 运行时指标（prometheus 后端）
	RuntimeMetrics bool `mapstructure:"runtime_metrics"`

	// KeyPrefix Hash 键前缀，实际键为 "<KeyPrefix>:counters"（redis 后端）
	KeyPrefix string `mapstructure:"key_prefix"`

	// CacheSize 本地记录已存在名称的缓存容量（redis、sql 后端）
	CacheSize int `mapstructure:"cache_size"`

	// Table 计数器表名，首次使用时自动建表（sql 后端）
	Table string `mapstructure:"table"`
}

// NewDevDefaultConfig 开发环境默认配置：内存后端
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Backend:     BackendMemory,
		ServiceName: serviceName,
		Version:     "dev",
	}
}

// NewProdDefaultConfig 生产环境默认配置：Prometheus 后端，开启运行时指标
func NewProdDefaultConfig(serviceName, version string) *Config {
	return &Config{
		Backend:        BackendPrometheus,
		ServiceName:    serviceName,
		Version:        version,
		Port:           9464,
		Path:           "/metrics",
		RuntimeMetrics: true,
	}
}

func (c *Config) setDefaults() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.ServiceName == "" {
		c.ServiceName = "bfa-metrics"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "bfa"
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 10000
	}
	if c.Table == "" {
		c.Table = "bfa_counters"
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendMemory, BackendPrometheus, BackendRedis, BackendSQL:
	default:
		return xerrors.Invalid("unknown metrics backend %q", c.Backend)
	}
	if c.Port < 0 || c.Port > 65535 {
		return xerrors.Invalid("metrics port %d out of range", c.Port)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return xerrors.Invalid("metrics path %q must start with /", c.Path)
	}
	return nil
}
