package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ceyewan/bfametrics/breaker"
	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/db"
	"github.com/ceyewan/bfametrics/metrics"
)

func countersCmd(a *app) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "counters",
		Short: "Print a snapshot of the counter registry",
		Long:  "Print every counter of the configured registry. Only meaningful for the persistent redis and sql backends.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var shutdown closer
			defer func() {
				if err := shutdown.close(context.Background()); err != nil {
					a.logger.Warn("failed to close registry", clog.Error(err))
				}
			}()

			registry, err := a.openRegistry(ctx, &shutdown)
			if err != nil {
				return err
			}

			snap, err := metrics.Snapshot(ctx, registry)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range slices.Sorted(maps.Keys(snap)) {
				if strings.HasPrefix(name, prefix) {
					fmt.Fprintf(out, "%s\t%d\n", name, snap[name])
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only print counters with this prefix")
	return cmd
}

// redis 返回共享的 Redis 连接，首次调用时建立并登记关闭
func (a *app) redis(ctx context.Context, shutdown *closer) (connector.RedisConnector, error) {
	if a.redisConn != nil {
		return a.redisConn, nil
	}
	conn, err := connector.NewRedis(&a.cfg.Redis, connector.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	shutdown.add(func(context.Context) error { return conn.Close() })
	a.redisConn = conn
	return conn, nil
}

// database 按 database.driver 建立连接并创建 DB 组件
func (a *app) database(ctx context.Context, shutdown *closer) (db.DB, error) {
	cfg := &a.cfg.Database
	var (
		conn connector.GormConnector
		err  error
	)
	if cfg.Driver == DriverMySQL {
		conn, err = connector.NewMySQL(&cfg.MySQL, connector.WithLogger(a.logger))
	} else {
		conn, err = connector.NewSQLite(&cfg.SQLite, connector.WithLogger(a.logger))
	}
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	shutdown.add(func(context.Context) error { return conn.Close() })
	a.sqlConn = conn

	database, err := db.New(conn, &cfg.Config, db.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	shutdown.add(func(context.Context) error { return database.Close() })
	return database, nil
}

// openRegistry 按配置创建注册表，redis 与 sql 后端会先建立连接，启用熔断时外包一层熔断器
func (a *app) openRegistry(ctx context.Context, shutdown *closer) (metrics.Registry, error) {
	opts := []metrics.Option{metrics.WithLogger(a.logger)}
	switch a.cfg.Metrics.Backend {
	case metrics.BackendRedis:
		conn, err := a.redis(ctx, shutdown)
		if err != nil {
			return nil, err
		}
		opts = append(opts, metrics.WithRedis(conn))
	case metrics.BackendSQL:
		database, err := a.database(ctx, shutdown)
		if err != nil {
			return nil, err
		}
		opts = append(opts, metrics.WithDB(database))
	}

	registry, err := metrics.New(&a.cfg.Metrics, opts...)
	if err != nil {
		return nil, err
	}
	shutdown.add(registry.Shutdown)

	if !a.cfg.Breaker.Enabled {
		return registry, nil
	}
	brk, err := breaker.New(&a.cfg.Breaker,
		breaker.WithLogger(a.logger),
		breaker.WithMeter(metrics.MeterOf(registry)))
	if err != nil {
		return nil, err
	}
	return breaker.GuardRegistry(registry, brk), nil
}
