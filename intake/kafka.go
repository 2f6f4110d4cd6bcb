package intake

import (
	"context"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/trace"
	"github.com/ceyewan/bfametrics/xerrors"
)

// KafkaClientOpts 返回消费所需的 kgo 选项，通过 connector.WithKafkaOpts 传给连接器。
// 配置了消费组时关闭自动提交，只提交已处理完成的记录。
func KafkaClientOpts(cfg KafkaConfig) []kgo.Opt {
	opts := []kgo.Opt{kgo.ConsumeTopics(cfg.Topic)}
	if cfg.Group != "" {
		opts = append(opts, kgo.ConsumerGroup(cfg.Group), kgo.DisableAutoCommit())
	}
	return opts
}

// ConsumeKafka 启动 Kafka 消费循环。连接器的客户端需用 KafkaClientOpts 创建。
// 解码失败与非法事件重投也不会成功，记录日志后跳过；
// 其余错误（注册表故障、熔断打开等）停在该记录，不提交其位移，稍后重新拉取。
func ConsumeKafka(ctx context.Context, conn connector.KafkaConnector, cfg KafkaConfig, h *Handler, codec Codec) (Subscription, error) {
	if conn == nil || conn.GetClient() == nil {
		return nil, connector.ErrNotConnected
	}
	if cfg.Topic == "" {
		return nil, xerrors.Invalid("kafka topic is empty")
	}
	if codec == nil {
		codec = jsonCodec{}
	}

	c := &kafkaConsumer{
		client:  conn.GetClient(),
		handler: h,
		codec:   codec,
		commit:  cfg.Group != "",
		group:   cfg.Group,
		logger:  h.logger.WithNamespace("kafka").With(clog.String("topic", cfg.Topic)),
	}
	s, subCtx := newSubscription(ctx)
	go func() {
		defer s.finish()
		c.run(subCtx)
	}()
	c.logger.Info("kafka intake started", clog.String("group", cfg.Group))
	return s, nil
}

type kafkaConsumer struct {
	client  *kgo.Client
	handler *Handler
	codec   Codec
	commit  bool
	group   string
	logger  clog.Logger
}

const kafkaRetryBackoff = time.Second

func (c *kafkaConsumer) run(ctx context.Context) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, err := range errs {
				c.logger.Error("kafka poll error",
					clog.String("topic", err.Topic), clog.Int("partition", int(err.Partition)), clog.Error(err.Err))
			}
			if !sleepCtx(ctx, kafkaRetryBackoff) {
				return
			}
			continue
		}

		var (
			done    []*kgo.Record
			backoff bool
		)
		rewind := map[string]map[int32]kgo.EpochOffset{}
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			last, retry, err := processPartition(p.Records, func(rec *kgo.Record) error {
				return c.handleRecord(ctx, rec)
			})
			if last != nil {
				done = append(done, last)
			}
			if retry == nil {
				return
			}
			backoff = true
			c.logger.Warn("kafka record will be redelivered",
				clog.Int("partition", int(retry.Partition)),
				clog.Int64("offset", retry.Offset),
				clog.Error(err))
			if rewind[retry.Topic] == nil {
				rewind[retry.Topic] = map[int32]kgo.EpochOffset{}
			}
			rewind[retry.Topic][retry.Partition] = kgo.EpochOffset{Epoch: retry.LeaderEpoch, Offset: retry.Offset}
		})

		if c.commit && len(done) > 0 {
			if err := c.client.CommitRecords(ctx, done...); err != nil && ctx.Err() == nil {
				c.logger.Error("failed to commit offsets", clog.Error(err))
			}
		}
		if len(rewind) > 0 {
			c.client.SetOffsets(rewind)
		}
		if backoff && !sleepCtx(ctx, kafkaRetryBackoff) {
			return
		}
	}
}

// processPartition 按顺序处理同一分区的记录。遇到可重试的错误立即停止，
// 返回可以提交的最后一条记录，以及需要重新投递的记录与其错误。
func processPartition(records []*kgo.Record, handle func(*kgo.Record) error) (last, retry *kgo.Record, err error) {
	for _, rec := range records {
		if err := handle(rec); err != nil && retryable(err) {
			return last, rec, err
		}
		last = rec
	}
	return last, nil, nil
}

// retryable 解码失败与非法输入重投也不会成功，其余错误都值得重试
func retryable(err error) bool {
	return xerrors.GetCode(err) != xerrors.CodeDecode && !xerrors.Is(err, xerrors.ErrInvalidInput)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *kafkaConsumer) handleRecord(ctx context.Context, rec *kgo.Record) error {
	spanCtx, span := trace.StartConsumerSpanFromHeaders(ctx, nil,
		trace.SpanNameMQConsume(rec.Topic), kafkaHeaders(rec.Headers), trace.MessagingMeta{
			System:        trace.MessagingSystemKafka,
			Destination:   rec.Topic,
			Operation:     trace.MessagingOperationProcess,
			ConsumerGroup: c.group,
		})
	defer span.End()

	ev, err := c.handler.HandleMessage(spanCtx, c.codec, rec.Value)
	if err != nil {
		trace.MarkSpanError(span, err)
		c.logger.Error("failed to handle kafka record",
			clog.Int("partition", int(rec.Partition)),
			clog.Int64("offset", rec.Offset),
			clog.ErrorWithCode(err, xerrors.GetCode(err)))
		return err
	}
	c.logger.Debug("kafka record handled", clog.String("event_id", ev.ID), clog.Int64("offset", rec.Offset))
	return nil
}

func kafkaHeaders(hs []kgo.RecordHeader) map[string]string {
	if len(hs) == 0 {
		return nil
	}
	out := make(map[string]string, len(hs))
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}
	return out
}
