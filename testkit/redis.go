package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ceyewan/bfametrics/connector"
)

// NewRedisContainer 使用 testcontainers 启动 Redis 并返回 host:port
// 生命周期由 t.Cleanup 管理
func NewRedisContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := rediscontainer.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return host + ":" + mappedPort.Port()
}

// NewRedisContainerConnector 启动 Redis 容器并返回已连接的连接器
func NewRedisContainerConnector(t *testing.T) connector.RedisConnector {
	t.Helper()
	conn, err := connector.NewRedis(&connector.RedisConfig{
		Name: "testcontainer-redis",
		Addr: NewRedisContainer(t),
	}, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create redis connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to redis")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
