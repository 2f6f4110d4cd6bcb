package connector

import (
	"fmt"
	"time"

	"github.com/ceyewan/bfametrics/xerrors"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	// 核心配置
	Addr     string `mapstructure:"addr"`     // [必填] 连接地址，如 "127.0.0.1:6379"
	Password string `mapstructure:"password"` // [可选] 认证密码
	DB       int    `mapstructure:"db"`       // [可选] 数据库编号 (默认: 0)

	// 高级配置（可选，有默认值）
	PoolSize      int           `mapstructure:"pool_size"`      // 连接池大小 (默认: 10)
	MinIdleConns  int           `mapstructure:"min_idle_conns"` // 最小空闲连接数 (默认: 0)
	MaxRetries    int           `mapstructure:"max_retries"`    // 命令重试次数 (默认: 3)
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`   // 连接超时 (默认: 5s)
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`   // 读取超时 (默认: 3s)
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`  // 写入超时 (默认: 3s)
	EnableTracing bool          `mapstructure:"enable_tracing"` // 启用 redisotel 链路追踪
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = 0
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return xerrors.Wrap(ErrConfig, "redis addr is empty")
	}
	if c.DB < 0 {
		return xerrors.Wrapf(ErrConfig, "redis db %d is negative", c.DB)
	}
	return nil
}

// NATSConfig NATS 连接配置
type NATSConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	// 核心配置
	URL      string `mapstructure:"url"`      // [必填] 连接地址，如 "nats://127.0.0.1:4222"
	Username string `mapstructure:"username"` // [可选] 用户名
	Password string `mapstructure:"password"` // [可选] 密码
	Token    string `mapstructure:"token"`    // [可选] 令牌

	// 高级配置（可选，有默认值）
	Timeout       time.Duration `mapstructure:"timeout"`        // 连接超时 (默认: 5s)
	MaxReconnects int           `mapstructure:"max_reconnects"` // 最大重连次数 (默认: 60)
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"` // 重连等待时间 (默认: 2s)
	PingInterval  time.Duration `mapstructure:"ping_interval"`  // ping 间隔 (默认: 2m)
	MaxPingsOut   int           `mapstructure:"max_pings_out"`  // 最大未响应 ping 数 (默认: 2)
}

func (c *NATSConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 60
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 2 * time.Minute
	}
	if c.MaxPingsOut == 0 {
		c.MaxPingsOut = 2
	}
}

func (c *NATSConfig) validate() error {
	c.setDefaults()
	if c.URL == "" {
		return xerrors.Wrap(ErrConfig, "nats url is empty")
	}
	return nil
}

// KafkaConfig Kafka 连接配置
type KafkaConfig struct {
	Name string   `mapstructure:"name"` // 连接器名称
	Seed []string `mapstructure:"seed"` // [必填] 初始连接节点 (Brokers)

	// 认证配置，User 与 Password 同时设置时启用 SASL/PLAIN
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"` // 客户端 ID (默认: "bfa-metrics")

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // 连接超时 (默认: 10s)
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 请求超时 (默认: 10s)
}

func (c *KafkaConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.ClientID == "" {
		c.ClientID = "bfa-metrics"
	}
}

func (c *KafkaConfig) validate() error {
	c.setDefaults()
	if len(c.Seed) == 0 {
		return xerrors.Wrap(ErrConfig, "kafka seed brokers are empty")
	}
	return nil
}

// MySQLConfig MySQL 连接配置，供 sql 计数器后端使用
type MySQLConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	// 核心配置
	DSN      string `mapstructure:"dsn"`      // 完整 DSN，设置后忽略 Host/Port 等字段
	Host     string `mapstructure:"host"`     // [必填] 主机地址
	Port     int    `mapstructure:"port"`     // 端口 (默认: 3306)
	Username string `mapstructure:"username"` // [必填] 用户名
	Password string `mapstructure:"password"` // 密码
	Database string `mapstructure:"database"` // [必填] 数据库名

	// 高级配置（可选，有默认值）
	Charset         string        `mapstructure:"charset"`           // 字符集 (默认: "utf8mb4")
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数 (默认: 10)
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数 (默认: 100)
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大生命周期 (默认: 1h)
}

func (c *MySQLConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
}

func (c *MySQLConfig) validate() error {
	c.setDefaults()
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return xerrors.Wrap(ErrConfig, "mysql host is empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return xerrors.Wrapf(ErrConfig, "mysql port %d out of range", c.Port)
	}
	if c.Username == "" {
		return xerrors.Wrap(ErrConfig, "mysql username is empty")
	}
	if c.Database == "" {
		return xerrors.Wrap(ErrConfig, "mysql database is empty")
	}
	return nil
}

func (c *MySQLConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// SQLiteConfig SQLite 连接配置，适合单实例部署的持久化计数
type SQLiteConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")
	Path string `mapstructure:"path"` // [必填] 数据库文件路径，如 "/var/lib/bfa/counters.db"
}

func (c *SQLiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
}

func (c *SQLiteConfig) validate() error {
	c.setDefaults()
	if c.Path == "" {
		return xerrors.Wrap(ErrConfig, "sqlite path is empty")
	}
	return nil
}
