package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ceyewan/bfametrics/trace"

// MessagingMeta 标准化的消息属性
type MessagingMeta struct {
	System        string
	Destination   string
	Operation     string
	ConsumerGroup string
	// TraceRelation 默认 link
	TraceRelation MessagingTraceRelation
}

// Inject 把 ctx 中的追踪上下文写入 headers
func Inject(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// Extract 从 headers 恢复追踪上下文
func Extract(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}

func messagingAttributes(meta MessagingMeta, attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)+4)
	if meta.System != "" {
		out = append(out, attribute.String(AttrMessagingSystem, meta.System))
	}
	if meta.Destination != "" {
		out = append(out, attribute.String(AttrMessagingDestination, meta.Destination))
	}
	if meta.Operation != "" {
		out = append(out, attribute.String(AttrMessagingOperation, meta.Operation))
	}
	if meta.ConsumerGroup != "" {
		out = append(out, attribute.String(AttrMessagingConsumerGroup, meta.ConsumerGroup))
	}
	return append(out, attrs...)
}

// StartConsumerSpanFromHeaders 以 headers 中的上游上下文启动消费者 Span。
// tracer 为 nil 时使用全局 TracerProvider。
func StartConsumerSpanFromHeaders(
	ctx context.Context,
	tracer oteltrace.Tracer,
	spanName string,
	headers map[string]string,
	meta MessagingMeta,
	attrs ...attribute.KeyValue,
) (context.Context, oteltrace.Span) {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	parent := ctx
	startOpts := []oteltrace.SpanStartOption{oteltrace.WithSpanKind(oteltrace.SpanKindConsumer)}
	if len(headers) > 0 {
		extracted := Extract(ctx, headers)
		if remote := oteltrace.SpanContextFromContext(extracted); remote.IsValid() {
			if meta.TraceRelation == MessagingTraceRelationChildOf {
				parent = extracted
			} else {
				startOpts = append(startOpts, oteltrace.WithLinks(oteltrace.Link{SpanContext: remote}))
			}
		}
	}

	spanCtx, span := tracer.Start(parent, spanName, startOpts...)
	span.SetAttributes(messagingAttributes(meta, attrs...)...)
	return spanCtx, span
}

// MarkSpanError err 不为 nil 时记录错误并把 Span 标记为失败
func MarkSpanError(span oteltrace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
