package main

import (
	"context"

	"github.com/ceyewan/bfametrics/auth"
	"github.com/ceyewan/bfametrics/breaker"
	"github.com/ceyewan/bfametrics/cause"
	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/config"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/db"
	"github.com/ceyewan/bfametrics/idem"
	"github.com/ceyewan/bfametrics/intake"
	"github.com/ceyewan/bfametrics/metrics"
	"github.com/ceyewan/bfametrics/ratelimit"
	"github.com/ceyewan/bfametrics/trace"
	"github.com/ceyewan/bfametrics/xerrors"
)

// AppConfig 服务整体配置
type AppConfig struct {
	Log       clog.Config           `mapstructure:"log"`
	Metrics   metrics.Config        `mapstructure:"metrics"`
	Trace     trace.Config          `mapstructure:"trace"`
	Breaker   breaker.Config        `mapstructure:"breaker"`
	Redis     connector.RedisConfig `mapstructure:"redis"`
	Database  DatabaseConfig        `mapstructure:"database"`
	NATS      connector.NATSConfig  `mapstructure:"nats"`
	Kafka     connector.KafkaConfig `mapstructure:"kafka"`
	Intake    intake.Config         `mapstructure:"intake"`
	Idem      idem.Config           `mapstructure:"idem"`
	RateLimit ratelimit.Config      `mapstructure:"ratelimit"`
	Auth      auth.Config           `mapstructure:"auth"`
	Causes    []*cause.FailureCause `mapstructure:"causes"`
}

// 数据库驱动
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DatabaseConfig sql 计数器后端使用的数据库
type DatabaseConfig struct {
	db.Config `mapstructure:",squash"`

	Driver string                 `mapstructure:"driver"` // mysql | sqlite
	MySQL  connector.MySQLConfig  `mapstructure:"mysql"`
	SQLite connector.SQLiteConfig `mapstructure:"sqlite"`
}

// defaults 列出全部配置键，未写入配置文件的键也能被环境变量覆盖
var defaults = map[string]any{
	"log.level":       "info",
	"log.format":      "json",
	"log.output":      "stdout",
	"log.add_source":  false,
	"log.source_root": "",

	"metrics.backend":         metrics.BackendMemory,
	"metrics.service_name":    "bfa-metrics",
	"metrics.version":         "dev",
	"metrics.port":            0,
	"metrics.path":            "/metrics",
	"metrics.runtime_metrics": false,
	"metrics.key_prefix":      "bfa",
	"metrics.cache_size":      10000,
	"metrics.table":           "bfa_counters",

	"trace.enabled":      false,
	"trace.service_name": "bfa-metrics",
	"trace.endpoint":     "localhost:4317",
	"trace.sampler":      1.0,
	"trace.batcher":      "batch",
	"trace.insecure":     true,

	"breaker.enabled":          false,
	"breaker.max_requests":     1,
	"breaker.interval":         "0s",
	"breaker.timeout":          "30s",
	"breaker.failure_ratio":    0.6,
	"breaker.minimum_requests": 10,

	"redis.name":           "bfa",
	"redis.addr":           "127.0.0.1:6379",
	"redis.password":       "",
	"redis.db":             0,
	"redis.pool_size":      10,
	"redis.enable_tracing": false,

	"database.driver":                  DriverSQLite,
	"database.log_level":               "warn",
	"database.slow_threshold":          "200ms",
	"database.enable_tracing":          false,
	"database.mysql.name":              "bfa",
	"database.mysql.dsn":               "",
	"database.mysql.host":              "127.0.0.1",
	"database.mysql.port":              3306,
	"database.mysql.username":          "bfa",
	"database.mysql.password":          "",
	"database.mysql.database":          "bfa",
	"database.mysql.charset":           "utf8mb4",
	"database.mysql.max_idle_conns":    10,
	"database.mysql.max_open_conns":    100,
	"database.mysql.conn_max_lifetime": "1h",
	"database.sqlite.name":             "bfa",
	"database.sqlite.path":             "bfa-counters.db",

	"nats.name":     "bfa",
	"nats.url":      "nats://127.0.0.1:4222",
	"nats.username": "",
	"nats.password": "",
	"nats.token":    "",

	"kafka.name":      "bfa",
	"kafka.seed":      []string{"127.0.0.1:9092"},
	"kafka.user":      "",
	"kafka.password":  "",
	"kafka.client_id": "bfa-metrics",

	"intake.squash":           false,
	"intake.job_metrics":      true,
	"intake.count_unmatched":  true,
	"intake.codec":            intake.CodecJSON,
	"intake.http.enabled":     true,
	"intake.http.addr":        ":8080",
	"intake.http.timeout":     "5s",
	"intake.nats.enabled":     false,
	"intake.nats.subject":     "bfa.events",
	"intake.nats.queue_group": "bfa-metrics",
	"intake.kafka.enabled":    false,
	"intake.kafka.topic":      "bfa-events",
	"intake.kafka.group":      "bfa-metrics",

	"idem.enabled":     false,
	"idem.driver":      string(idem.DriverMemory),
	"idem.prefix":      "bfa:idem:",
	"idem.default_ttl": "24h",
	"idem.lock_ttl":    "30s",
	"idem.capacity":    100000,

	"ratelimit.enabled":          false,
	"ratelimit.driver":           string(ratelimit.DriverStandalone),
	"ratelimit.rate":             100,
	"ratelimit.burst":            200,
	"ratelimit.key_header":       "",
	"ratelimit.cleanup_interval": "1m",
	"ratelimit.idle_timeout":     "5m",
	"ratelimit.prefix":           "bfa:ratelimit:",

	"auth.enabled":          false,
	"auth.secret_key":       "",
	"auth.signing_method":   "HS256",
	"auth.issuer":           "bfa-metrics",
	"auth.audience":         []string{},
	"auth.access_token_ttl": "24h",
	"auth.token_lookup":     "",
	"auth.token_head_name":  "Bearer",
}

// loadConfig 依次合并默认值、配置文件、.env 与 BFA_ 前缀的环境变量
func loadConfig(ctx context.Context, paths []string, logger clog.Logger) (*AppConfig, error) {
	opts := []config.Option{
		config.WithConfigName("bfa-metrics"),
		config.WithEnvPrefix("BFA"),
		config.WithDefaults(defaults),
		config.WithLogger(logger),
	}
	if len(paths) > 0 {
		opts = append(opts, config.WithConfigPaths(paths...))
	}

	loader, err := config.Load(ctx, opts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "load config")
	}

	var cfg AppConfig
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Intake.Validate(); err != nil {
		return nil, xerrors.Wrap(err, "intake config")
	}
	if cfg.Metrics.Backend == metrics.BackendSQL && cfg.Database.Driver != DriverMySQL && cfg.Database.Driver != DriverSQLite {
		return nil, xerrors.Invalid("unknown database driver %q", cfg.Database.Driver)
	}
	return &cfg, nil
}
