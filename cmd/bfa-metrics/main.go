// Command bfa-metrics 把构建失败分析结果聚合为计数器。
//
//	bfa-metrics serve                     启动事件接入服务
//	bfa-metrics names --job team/proj OOM 打印一个原因会递增的全部指标名
//	bfa-metrics counters                  打印注册表中的计数快照
//	bfa-metrics token --role reporter ci  为上报方签发 JWT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app 在 PersistentPreRunE 中填充，供子命令共享
type app struct {
	configPaths []string
	cfg         *AppConfig
	logger      clog.Logger
	redisConn   connector.RedisConnector
	sqlConn     connector.GormConnector
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "bfa-metrics",
		Short:         "Aggregate build failure causes into counters",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}
	root.PersistentFlags().StringSliceVar(&a.configPaths, "config-dir", nil, "directories searched for bfa-metrics.yaml")

	root.AddCommand(
		serveCmd(a),
		namesCmd(),
		countersCmd(a),
		tokenCmd(a),
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	cfg, err := loadConfig(ctx, a.configPaths, clog.Discard())
	if err != nil {
		return err
	}
	logger, err := clog.New(&cfg.Log, clog.WithNamespace("bfa-metrics"), clog.WithStandardContext())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
