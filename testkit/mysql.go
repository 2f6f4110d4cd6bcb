package testkit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/ceyewan/bfametrics/connector"
)

// NewMySQLContainerConfig 使用 testcontainers 启动 MySQL 并返回连接配置
// 生命周期由 t.Cleanup 管理
func NewMySQLContainerConfig(t *testing.T) *connector.MySQLConfig {
	t.Helper()
	ctx := context.Background()

	container, err := mysql.Run(ctx,
		"mysql:8.0",
		mysql.WithDatabase("bfa"),
		mysql.WithUsername("bfa"),
		mysql.WithPassword("bfa_password"),
	)
	require.NoError(t, err, "failed to start mysql container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)
	port, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	return &connector.MySQLConfig{
		Name:         "testcontainer-mysql",
		Host:         host,
		Port:         port,
		Username:     "bfa",
		Password:     "bfa_password",
		Database:     "bfa",
		MaxIdleConns: 2,
		MaxOpenConns: 10,
	}
}

// NewMySQLContainerConnector 启动 MySQL 容器并返回已连接的连接器
func NewMySQLContainerConnector(t *testing.T) connector.MySQLConnector {
	t.Helper()
	conn, err := connector.NewMySQL(NewMySQLContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create mysql connector")

	// 容器端口就绪后 mysqld 仍可能在初始化，重试直到可以 Ping
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for {
		if err = conn.Connect(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			require.NoError(t, err, "timeout waiting for mysql to be ready")
		case <-time.After(2 * time.Second):
		}
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
