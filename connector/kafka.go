package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/xerrors"
)

type kafkaConnector struct {
	cfg       *KafkaConfig
	client    *kgo.Client
	extraOpts []kgo.Opt
	logger    clog.Logger
	healthy   atomic.Bool
	mu        sync.RWMutex
}

// NewKafka 创建 Kafka 连接器
func NewKafka(cfg *KafkaConfig, opts ...Option) (KafkaConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "kafka config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid kafka config")
	}

	opt := applyOptions(opts)
	return &kafkaConnector{
		cfg:       cfg,
		extraOpts: opt.kafkaOpts,
		logger:    opt.logger.With(clog.String("connector", "kafka"), clog.String("name", cfg.Name)),
	}, nil
}

func (c *kafkaConnector) clientOptions() []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.cfg.Seed...),
		kgo.ClientID(c.cfg.ClientID),
		kgo.DialTimeout(c.cfg.ConnectTimeout),
		kgo.RequestTimeoutOverhead(c.cfg.RequestTimeout),
		kgo.WithLogger(&kgoLogger{logger: c.logger}),
	}
	if c.cfg.User != "" && c.cfg.Password != "" {
		c.logger.Info("enabling SASL/PLAIN authentication", clog.String("user", c.cfg.User))
		auth := plain.Auth{User: c.cfg.User, Pass: c.cfg.Password}
		opts = append(opts, kgo.SASL(auth.AsMechanism()))
	}
	return append(opts, c.extraOpts...)
}

// Connect 创建客户端并 Ping 种子节点
func (c *kafkaConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	c.logger.Info("attempting to connect to kafka", clog.Strings("seeds", c.cfg.Seed))
	client, err := kgo.NewClient(c.clientOptions()...)
	if err != nil {
		c.logger.Error("failed to create kafka client", clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrConfig, err), "kafka connector[%s]", c.cfg.Name)
	}

	// franz-go 的连接是惰性的，Ping 用于确认至少一个节点可达
	if err := client.Ping(ctx); err != nil {
		client.Close()
		c.logger.Error("failed to connect to kafka seeds", clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrConnection, err), "kafka connector[%s]", c.cfg.Name)
	}

	c.client = client
	c.healthy.Store(true)
	c.logger.Info("successfully connected to kafka")
	return nil
}

func (c *kafkaConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.client != nil {
		c.client.Close()
		c.client = nil
		c.logger.Info("kafka connection closed")
	}
	return nil
}

func (c *kafkaConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		c.healthy.Store(false)
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(xerrors.Join(ErrHealthCheck, err), "kafka connector[%s]", c.cfg.Name)
	}
	c.healthy.Store(true)
	return nil
}

func (c *kafkaConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *kafkaConnector) Name() string {
	return c.cfg.Name
}

func (c *kafkaConnector) GetClient() *kgo.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// kgoLogger 将 franz-go 日志桥接到 clog
type kgoLogger struct {
	logger clog.Logger
}

func (l *kgoLogger) Level() kgo.LogLevel {
	return kgo.LogLevelInfo
}

func (l *kgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	fields := make([]clog.Field, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		if key, ok := keyvals[i].(string); ok {
			fields = append(fields, clog.Any(key, keyvals[i+1]))
		}
	}

	switch level {
	case kgo.LogLevelError:
		l.logger.Error(msg, fields...)
	case kgo.LogLevelWarn:
		l.logger.Warn(msg, fields...)
	case kgo.LogLevelInfo:
		l.logger.Info(msg, fields...)
	case kgo.LogLevelDebug:
		l.logger.Debug(msg, fields...)
	}
}
