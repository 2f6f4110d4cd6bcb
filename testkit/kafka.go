package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ceyewan/bfametrics/connector"
)

// NewKafkaContainerConfig 使用 testcontainers 启动单节点 Kafka 并返回连接配置
// 生命周期由 t.Cleanup 管理
func NewKafkaContainerConfig(t *testing.T) *connector.KafkaConfig {
	t.Helper()
	ctx := context.Background()

	container, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkacontainer.WithClusterID("bfa-test-cluster"),
	)
	require.NoError(t, err, "failed to start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return &connector.KafkaConfig{
		Name:           "testcontainer-kafka",
		Seed:           brokers,
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// NewKafkaContainerConnector 启动 Kafka 容器并返回已连接的连接器，extra 追加到客户端选项
func NewKafkaContainerConnector(t *testing.T, extra ...kgo.Opt) connector.KafkaConnector {
	t.Helper()
	conn, err := connector.NewKafka(NewKafkaContainerConfig(t),
		connector.WithLogger(NewLogger()),
		connector.WithKafkaOpts(extra...),
	)
	require.NoError(t, err, "failed to create kafka connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to kafka")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
