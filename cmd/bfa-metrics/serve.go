package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/bfametrics/auth"
	"github.com/ceyewan/bfametrics/bfa"
	"github.com/ceyewan/bfametrics/cause"
	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/idem"
	"github.com/ceyewan/bfametrics/intake"
	"github.com/ceyewan/bfametrics/metrics"
	"github.com/ceyewan/bfametrics/ratelimit"
	"github.com/ceyewan/bfametrics/trace"
	"github.com/ceyewan/bfametrics/xerrors"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the failure event intake",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// closer 关闭时按注册的逆序执行
type closer struct {
	fns []func(context.Context) error
}

func (c *closer) add(fn func(context.Context) error) {
	c.fns = append(c.fns, fn)
}

func (c *closer) close(ctx context.Context) error {
	var errs []error
	for i := len(c.fns) - 1; i >= 0; i-- {
		errs = append(errs, c.fns[i](ctx))
	}
	return xerrors.Combine(errs...)
}

func (a *app) serve(ctx context.Context) (err error) {
	cfg, logger := a.cfg, a.logger
	defer logger.Flush()

	var shutdown closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := shutdown.close(shutdownCtx); closeErr != nil {
			logger.Error("shutdown finished with errors", clog.Error(closeErr))
			err = xerrors.Combine(err, closeErr)
			return
		}
		logger.Info("shutdown complete")
	}()

	// 链路追踪
	traceShutdown, err := a.openTracing()
	if err != nil {
		return xerrors.Wrap(err, "init tracing")
	}
	shutdown.add(traceShutdown)

	// 注册表与计数
	registry, err := a.openRegistry(ctx, &shutdown)
	if err != nil {
		return xerrors.Wrap(err, "open registry")
	}

	manager, err := bfa.NewManager(registry, bfa.WithLogger(logger))
	if err != nil {
		return err
	}

	catalog, err := cause.NewCatalog(cfg.Causes)
	if err != nil {
		return xerrors.Wrap(err, "load cause catalog")
	}
	handlerOpts := []intake.Option{intake.WithLogger(logger), intake.WithCatalog(catalog)}
	if cfg.Idem.Enabled {
		guard, err := a.openIdem(ctx, &shutdown)
		if err != nil {
			return xerrors.Wrap(err, "open idem")
		}
		handlerOpts = append(handlerOpts, intake.WithIdempotency(guard))
	}
	handler, err := intake.NewHandler(manager, cfg.Intake.Policy, handlerOpts...)
	if err != nil {
		return err
	}
	if err := handler.RegisterCatalog(ctx, catalog); err != nil {
		return err
	}

	codec, err := intake.NewCodec(cfg.Intake.Codec)
	if err != nil {
		return err
	}

	// 接入
	var health []connector.Connector
	if a.redisConn != nil {
		health = append(health, a.redisConn)
	}
	if a.sqlConn != nil {
		health = append(health, a.sqlConn)
	}

	if cfg.Intake.NATS.Enabled {
		conn, err := connector.NewNATS(&cfg.NATS, connector.WithLogger(logger))
		if err != nil {
			return err
		}
		if err := conn.Connect(ctx); err != nil {
			return err
		}
		shutdown.add(func(context.Context) error { return conn.Close() })
		health = append(health, conn)

		sub, err := intake.SubscribeNATS(ctx, conn, cfg.Intake.NATS, handler, codec)
		if err != nil {
			return err
		}
		shutdown.add(waitSubscription(sub))
	}

	if cfg.Intake.Kafka.Enabled {
		conn, err := connector.NewKafka(&cfg.Kafka,
			connector.WithLogger(logger),
			connector.WithKafkaOpts(intake.KafkaClientOpts(cfg.Intake.Kafka)...))
		if err != nil {
			return err
		}
		if err := conn.Connect(ctx); err != nil {
			return err
		}
		shutdown.add(func(context.Context) error { return conn.Close() })
		health = append(health, conn)

		sub, err := intake.ConsumeKafka(ctx, conn, cfg.Intake.Kafka, handler, codec)
		if err != nil {
			return err
		}
		shutdown.add(waitSubscription(sub))
	}

	if cfg.Intake.HTTP.Enabled {
		httpMetrics, err := metrics.NewHTTPServerMetrics(metrics.MeterOf(registry), cfg.Metrics.ServiceName)
		if err != nil {
			return err
		}
		routerOpts := []intake.RouterOption{
			intake.WithHTTPMetrics(httpMetrics),
			intake.WithHealthChecks(health...),
			intake.WithRequestTimeout(cfg.Intake.HTTP.Timeout),
			intake.WithTracing(cfg.Trace.ServiceName),
		}
		if cfg.RateLimit.Enabled {
			limiter, err := a.openRateLimiter(ctx, registry, &shutdown)
			if err != nil {
				return xerrors.Wrap(err, "open rate limiter")
			}
			routerOpts = append(routerOpts, intake.WithRateLimit(limiter, &cfg.RateLimit))
		}
		if cfg.Auth.Enabled {
			authenticator, err := auth.New(&cfg.Auth,
				auth.WithLogger(logger),
				auth.WithMeter(metrics.MeterOf(registry)))
			if err != nil {
				return xerrors.Wrap(err, "create authenticator")
			}
			routerOpts = append(routerOpts, intake.WithAuth(authenticator))
		}
		router := intake.NewRouter(handler, registry, routerOpts...)
		server := intake.NewServer(cfg.Intake.HTTP.Addr, router, logger)
		server.Start()
		shutdown.add(server.Shutdown)
	}

	logger.Info("bfa-metrics started",
		clog.String("backend", cfg.Metrics.Backend),
		clog.Int("causes", catalog.Len()),
		clog.Bool("http", cfg.Intake.HTTP.Enabled),
		clog.Bool("nats", cfg.Intake.NATS.Enabled),
		clog.Bool("kafka", cfg.Intake.Kafka.Enabled),
		clog.Bool("tracing", cfg.Trace.Enabled))

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// waitSubscription 停止订阅并等待其退出
func waitSubscription(sub intake.Subscription) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := sub.Unsubscribe(); err != nil {
			return err
		}
		select {
		case <-sub.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// openIdem 创建事件去重器，redis 驱动与注册表共用连接
func (a *app) openIdem(ctx context.Context, shutdown *closer) (idem.Idempotency, error) {
	opts := []idem.Option{idem.WithLogger(a.logger)}
	if a.cfg.Idem.Driver == idem.DriverRedis {
		conn, err := a.redis(ctx, shutdown)
		if err != nil {
			return nil, err
		}
		opts = append(opts, idem.WithRedisConnector(conn))
	}
	return idem.New(&a.cfg.Idem, opts...)
}

// openRateLimiter 创建 HTTP 接入限流器，distributed 驱动与注册表共用连接
func (a *app) openRateLimiter(ctx context.Context, registry metrics.Registry, shutdown *closer) (ratelimit.Limiter, error) {
	opts := []ratelimit.Option{
		ratelimit.WithLogger(a.logger),
		ratelimit.WithMeter(metrics.MeterOf(registry)),
	}
	if a.cfg.RateLimit.Driver == ratelimit.DriverDistributed {
		conn, err := a.redis(ctx, shutdown)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ratelimit.WithRedisConnector(conn))
	}
	limiter, err := ratelimit.New(&a.cfg.RateLimit, opts...)
	if err != nil {
		return nil, err
	}
	shutdown.add(func(context.Context) error { return limiter.Close() })
	return limiter, nil
}

// openTracing 未启用导出时仍安装本地 provider，上游 traceparent 照常向下传播
func (a *app) openTracing() (func(context.Context) error, error) {
	if !a.cfg.Trace.Enabled {
		return trace.Discard(a.cfg.Trace.ServiceName)
	}
	a.logger.Info("exporting traces", clog.String("endpoint", a.cfg.Trace.Endpoint))
	return trace.Init(&a.cfg.Trace)
}
