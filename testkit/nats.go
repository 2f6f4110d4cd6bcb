package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"

	"github.com/ceyewan/bfametrics/connector"
)

// NewNATSContainer 使用 testcontainers 启动 NATS 并返回连接 URL
// 生命周期由 t.Cleanup 管理
func NewNATSContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := natscontainer.Run(ctx, "nats:2.10-alpine")
	require.NoError(t, err, "failed to start NATS container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return "nats://" + host + ":" + mappedPort.Port()
}

// NewNATSContainerConnector 启动 NATS 容器并返回已连接的连接器
func NewNATSContainerConnector(t *testing.T) connector.NATSConnector {
	t.Helper()
	conn, err := connector.NewNATS(&connector.NATSConfig{
		Name:          "testcontainer-nats",
		URL:           NewNATSContainer(t),
		MaxReconnects: 10,
		ReconnectWait: 100 * time.Millisecond,
	}, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create nats connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to nats")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
