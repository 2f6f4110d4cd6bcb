package intake

import (
	"time"

	"github.com/ceyewan/bfametrics/xerrors"
)

// Policy 计数策略
type Policy struct {
	// Squash 事件未指定时的默认去重策略
	Squash bool `mapstructure:"squash"`
	// JobMetrics 事件带有 job 时是否同时递增 job 维度计数器
	JobMetrics bool `mapstructure:"job_metrics"`
	// CountUnmatched 没有任何原因的事件记为 "no matching cause"
	CountUnmatched bool `mapstructure:"count_unmatched"`
}

// Config 事件接入配置
type Config struct {
	Policy `mapstructure:",squash"`

	// Codec 消息编码，可选 json、msgpack (默认: json)
	Codec string `mapstructure:"codec"`

	HTTP  HTTPConfig  `mapstructure:"http"`
	NATS  NATSConfig  `mapstructure:"nats"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// HTTPConfig HTTP 接入配置
type HTTPConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`     // 监听地址 (默认: ":8080")
	Timeout time.Duration `mapstructure:"timeout"` // 单请求超时 (默认: 5s)
}

// NATSConfig NATS 订阅配置
type NATSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Subject    string `mapstructure:"subject"`     // 订阅主题 (默认: "bfa.events")
	QueueGroup string `mapstructure:"queue_group"` // 为空时每个实例都收到全部事件
}

// KafkaConfig Kafka 消费配置
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"` // 消费主题 (默认: "bfa-events")
	Group   string `mapstructure:"group"` // 消费组，为空时直接消费全部分区
}

// DefaultConfig 返回默认配置，仅开启 HTTP
func DefaultConfig() *Config {
	cfg := &Config{
		Policy: Policy{CountUnmatched: true, JobMetrics: true},
		HTTP:   HTTPConfig{Enabled: true},
	}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Codec == "" {
		c.Codec = CodecJSON
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 5 * time.Second
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "bfa.events"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "bfa-events"
	}
}

// Validate 填充默认值并校验
func (c *Config) Validate() error {
	c.setDefaults()
	if _, err := NewCodec(c.Codec); err != nil {
		return err
	}
	if !c.HTTP.Enabled && !c.NATS.Enabled && !c.Kafka.Enabled {
		return xerrors.Invalid("no intake transport enabled")
	}
	return nil
}
