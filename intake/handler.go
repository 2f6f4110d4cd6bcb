// Package intake 接收构建失败事件并驱动计数。
//
// 事件可以来自 HTTP、NATS 或 Kafka，三种入口共享同一个 Handler：
//
//	handler, _ := intake.NewHandler(manager, cfg.Policy, intake.WithLogger(logger))
//	router := intake.NewRouter(handler, registry)
//	sub, _ := intake.SubscribeNATS(ctx, natsConn, cfg.NATS, handler, codec)
package intake

import (
	"context"

	"github.com/google/uuid"

	"github.com/ceyewan/bfametrics/bfa"
	"github.com/ceyewan/bfametrics/cause"
	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/idem"
	"github.com/ceyewan/bfametrics/xerrors"
)

// Handler 把事件翻译为 Manager 调用
type Handler struct {
	manager *bfa.Manager
	policy  Policy
	catalog *cause.Catalog
	guard   idem.Idempotency
	newID   func() string
	logger  clog.Logger
}

// NewHandler 创建 Handler
func NewHandler(manager *bfa.Manager, policy Policy, opts ...Option) (*Handler, error) {
	if manager == nil {
		return nil, xerrors.Invalid("manager is nil")
	}
	h := &Handler{
		manager: manager,
		policy:  policy,
		newID:   uuid.NewString,
		logger:  clog.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Policy 返回当前计数策略
func (h *Handler) Policy() Policy {
	return h.policy
}

// Handle 处理一个事件。
//
// 事件没有 ID 时分配一个；没有原因且开启 CountUnmatched 时记为未知原因；
// 开启 JobMetrics 且事件带 job 时同时递增 job 维度计数器。
// 配置了幂等执行器时，带 ID 的事件只计数一次，重复投递直接返回 nil。
// 计数失败返回带 REGISTRY_FAILED 错误码的错误。
func (h *Handler) Handle(ctx context.Context, ev *Event) error {
	if ev == nil {
		return xerrors.Invalid("event is nil")
	}
	if ev.ID == "" {
		ev.ID = h.newID()
		return h.count(ctx, ev)
	}
	if h.guard == nil {
		return h.count(ctx, ev)
	}

	executed, err := h.guard.Consume(ctx, "event:"+ev.ID, 0, func(ctx context.Context) error {
		return h.count(ctx, ev)
	})
	switch {
	case executed && err != nil:
		// 计数已生效，只是完成标记没写进去
		h.logger.WarnContext(ctx, "failed to mark event as counted", clog.String("event_id", ev.ID), clog.Error(err))
		return nil
	case err != nil:
		return err
	case !executed:
		h.logger.InfoContext(ctx, "duplicate event skipped", clog.String("event_id", ev.ID))
	}
	return nil
}

// count 校验并递增事件对应的计数器
func (h *Handler) count(ctx context.Context, ev *Event) error {
	causes := make([]cause.MetricData, 0, len(ev.Causes))
	for _, rec := range ev.Causes {
		if err := rec.validate(); err != nil {
			return xerrors.Wrapf(err, "event %s", ev.ID)
		}
		causes = append(causes, rec.toFailureCause(h.catalog))
	}
	if len(causes) == 0 {
		if !h.policy.CountUnmatched {
			h.logger.DebugContext(ctx, "event without causes ignored", clog.String("event_id", ev.ID))
			return nil
		}
		causes = append(causes, cause.Unknown)
	}

	squash := ev.SquashOr(h.policy.Squash)
	var err error
	if h.policy.JobMetrics && ev.Job != "" {
		err = h.manager.IncJobCounters(ctx, causes, squash, ev.Job)
	} else {
		err = h.manager.IncCounters(ctx, causes, squash)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count event",
			clog.String("event_id", ev.ID), clog.String("job", ev.Job), clog.Error(err))
		return xerrors.WithCode(err, xerrors.CodeRegistry)
	}

	h.logger.InfoContext(ctx, "event counted",
		clog.String("event_id", ev.ID),
		clog.String("job", ev.Job),
		clog.Int("causes", len(causes)),
		clog.Bool("squash", squash))
	return nil
}

// HandleMessage 解码并处理一条消息，返回解码后的事件
func (h *Handler) HandleMessage(ctx context.Context, codec Codec, data []byte) (*Event, error) {
	ev, err := decodeEvent(codec, data)
	if err != nil {
		return nil, err
	}
	return ev, h.Handle(ctx, ev)
}

// RegisterCause 为原因预建计数器
func (h *Handler) RegisterCause(ctx context.Context, rec CauseRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if err := h.manager.Register(ctx, rec.toFailureCause(h.catalog)); err != nil {
		return xerrors.WithCode(err, xerrors.CodeRegistry)
	}
	h.logger.InfoContext(ctx, "cause registered", clog.String("cause", rec.Name))
	return nil
}

// RegisterCatalog 为目录中的全部原因预建计数器，整个目录只读取一次注册表已有名称
func (h *Handler) RegisterCatalog(ctx context.Context, catalog *cause.Catalog) error {
	if catalog == nil {
		return nil
	}
	all := catalog.All()
	causes := make([]cause.MetricData, len(all))
	for i, fc := range all {
		causes[i] = fc
	}
	if err := h.manager.RegisterAll(ctx, causes); err != nil {
		return xerrors.WithCode(xerrors.Wrap(err, "register cause catalog"), xerrors.CodeRegistry)
	}
	h.logger.InfoContext(ctx, "cause catalog registered", clog.Int("causes", catalog.Len()))
	return nil
}
