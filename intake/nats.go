package intake

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/trace"
	"github.com/ceyewan/bfametrics/xerrors"
)

// SubscribeNATS 订阅 NATS 主题，每条消息按 codec 解码后交给 Handler。
// 配置了 QueueGroup 时同组实例分摊消息。ctx 取消或调用 Unsubscribe 后停止。
func SubscribeNATS(ctx context.Context, conn connector.NATSConnector, cfg NATSConfig, h *Handler, codec Codec) (Subscription, error) {
	if conn == nil || conn.GetClient() == nil {
		return nil, connector.ErrNotConnected
	}
	if cfg.Subject == "" {
		return nil, xerrors.Invalid("nats subject is empty")
	}
	if codec == nil {
		codec = jsonCodec{}
	}

	logger := h.logger.WithNamespace("nats").With(clog.String("subject", cfg.Subject))
	s, subCtx := newSubscription(ctx)

	meta := trace.MessagingMeta{
		System:        trace.MessagingSystemNATS,
		Destination:   cfg.Subject,
		Operation:     trace.MessagingOperationProcess,
		ConsumerGroup: cfg.QueueGroup,
	}
	cb := func(msg *nats.Msg) {
		spanCtx, span := trace.StartConsumerSpanFromHeaders(subCtx, nil,
			trace.SpanNameMQConsume(msg.Subject), natsHeaders(msg.Header), meta)
		defer span.End()

		ev, err := h.HandleMessage(spanCtx, codec, msg.Data)
		if err != nil {
			trace.MarkSpanError(span, err)
			logger.Error("failed to handle nats message", clog.ErrorWithCode(err, xerrors.GetCode(err)))
			return
		}
		if msg.Reply != "" {
			if err := msg.Respond([]byte(ev.ID)); err != nil {
				logger.Warn("failed to reply", clog.String("event_id", ev.ID), clog.Error(err))
			}
		}
	}

	client := conn.GetClient()
	var (
		sub *nats.Subscription
		err error
	)
	if cfg.QueueGroup != "" {
		sub, err = client.QueueSubscribe(cfg.Subject, cfg.QueueGroup, cb)
	} else {
		sub, err = client.Subscribe(cfg.Subject, cb)
	}
	if err != nil {
		s.cancel()
		return nil, xerrors.Wrapf(err, "subscribe to %s failed", cfg.Subject)
	}
	logger.Info("nats intake subscribed", clog.String("queue_group", cfg.QueueGroup))

	go func() {
		<-subCtx.Done()
		if err := sub.Drain(); err != nil && !xerrors.Is(err, nats.ErrConnectionClosed) {
			logger.Warn("failed to drain subscription", clog.Error(err))
		}
		s.finish()
	}()
	return s, nil
}

// natsHeaders 取每个头的首个值，供追踪上下文提取
func natsHeaders(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
