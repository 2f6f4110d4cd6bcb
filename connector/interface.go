// Package connector 为 bfametrics 提供统一的外部连接管理能力。
//
// 核心特性：
//   - 统一抽象：通过 Connector 接口提供一致的连接管理 API
//   - 类型安全：通过 TypedConnector[T] 泛型接口确保编译时类型检查
//   - 数据源：Redis、MySQL 与 SQLite（计数器存储），NATS 与 Kafka（失败事件接入）
//   - 健康检查：HealthCheck 主动探测，IsHealthy 读取缓存结果
//   - 资源管理：遵循"谁创建，谁负责释放"原则，Close() 应在应用层调用
//
// 基本使用：
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"},
//		connector.WithLogger(logger))
//	if err != nil {
//		panic(err)
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		panic(err)
//	}
//	registry, err := metrics.New(&metrics.Config{Backend: metrics.BackendRedis},
//		metrics.WithRedis(conn))
//
// 资源所有权：
//
//	Connector 拥有底层连接的生命周期。metrics、intake 等组件仅借用 Connector，
//	不应调用 Close()。应用层按 LIFO 顺序释放：先关闭组件，再关闭 Connector。
package connector

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"gorm.io/gorm"
)

// Connector 定义所有连接器的通用行为，方法均为并发安全。
type Connector interface {
	// Connect 建立连接，幂等。
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等。
	Close() error

	// HealthCheck 主动检查连接健康状态，并更新 IsHealthy 的缓存结果。
	//
	// 返回错误：
	//   - ErrNotConnected: 尚未连接或已关闭
	//   - ErrHealthCheck: 健康检查失败
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次检查的健康状态，无阻塞。
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志。
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。
// 在 Connect() 之前或 Close() 之后 GetClient 可能返回 nil。
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

// RedisConnector Redis 连接器，供 redis 计数器后端使用。
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// NATSConnector NATS 连接器，内置自动重连。
type NATSConnector interface {
	TypedConnector[*nats.Conn]
}

// KafkaConnector Kafka 连接器，基于 franz-go。
type KafkaConnector interface {
	TypedConnector[*kgo.Client]
}

// GormConnector 基于 GORM 的关系型数据库连接器，供 db 组件借用
type GormConnector interface {
	TypedConnector[*gorm.DB]
}

// MySQLConnector MySQL 连接器
type MySQLConnector interface {
	GormConnector
}

// SQLiteConnector SQLite 连接器
type SQLiteConnector interface {
	GormConnector
}
