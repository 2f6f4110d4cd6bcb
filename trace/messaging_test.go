package trace

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/bfametrics/xerrors"
)

func setupTracerForTest(t *testing.T) (oteltrace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Tracer("test"), recorder
}

func upstreamHeaders(t *testing.T, tracer oteltrace.Tracer) (map[string]string, oteltrace.SpanContext) {
	t.Helper()
	ctx, span := tracer.Start(context.Background(), "jenkins.publish")
	headers := map[string]string{}
	Inject(ctx, headers)
	span.End()
	if headers["traceparent"] == "" {
		t.Fatalf("traceparent header should be injected")
	}
	return headers, span.SpanContext()
}

func findSpan(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range recorder.Ended() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("span %q not found", name)
	return nil
}

func TestStartConsumerSpanFromHeadersUsesLink(t *testing.T) {
	tracer, recorder := setupTracerForTest(t)
	headers, parentSC := upstreamHeaders(t, tracer)

	_, span := StartConsumerSpanFromHeaders(
		context.Background(),
		tracer,
		SpanNameMQConsume("bfa-events"),
		headers,
		MessagingMeta{
			System:        MessagingSystemKafka,
			Destination:   "bfa-events",
			Operation:     MessagingOperationProcess,
			ConsumerGroup: "bfa-metrics",
		},
	)
	span.End()

	consumer := findSpan(t, recorder, SpanNameMQConsume("bfa-events"))
	if consumer.SpanKind() != oteltrace.SpanKindConsumer {
		t.Fatalf("span kind = %v, want consumer", consumer.SpanKind())
	}
	if consumer.Parent().IsValid() {
		t.Fatalf("consumer span should not use remote span as direct parent")
	}
	if len(consumer.Links()) != 1 {
		t.Fatalf("consumer links = %d, want 1", len(consumer.Links()))
	}
	if consumer.Links()[0].SpanContext.TraceID() != parentSC.TraceID() {
		t.Fatalf("linked trace id mismatch")
	}

	want := map[attribute.Key]string{
		AttrMessagingSystem:        MessagingSystemKafka,
		AttrMessagingDestination:   "bfa-events",
		AttrMessagingConsumerGroup: "bfa-metrics",
	}
	for _, kv := range consumer.Attributes() {
		if v, ok := want[kv.Key]; ok {
			if kv.Value.AsString() != v {
				t.Fatalf("attribute %s = %q, want %q", kv.Key, kv.Value.AsString(), v)
			}
			delete(want, kv.Key)
		}
	}
	if len(want) != 0 {
		t.Fatalf("missing attributes: %v", want)
	}
}

func TestStartConsumerSpanFromHeadersUsesChildOf(t *testing.T) {
	tracer, recorder := setupTracerForTest(t)
	headers, parentSC := upstreamHeaders(t, tracer)

	_, span := StartConsumerSpanFromHeaders(
		context.Background(),
		tracer,
		SpanNameMQConsume("bfa.events"),
		headers,
		MessagingMeta{
			System:        MessagingSystemNATS,
			Destination:   "bfa.events",
			TraceRelation: MessagingTraceRelationChildOf,
		},
	)
	span.End()

	consumer := findSpan(t, recorder, SpanNameMQConsume("bfa.events"))
	if consumer.Parent().SpanID() != parentSC.SpanID() {
		t.Fatalf("consumer parent span id mismatch")
	}
	if consumer.SpanContext().TraceID() != parentSC.TraceID() {
		t.Fatalf("consumer should continue upstream trace")
	}
	if len(consumer.Links()) != 0 {
		t.Fatalf("consumer links = %d, want 0 in child_of mode", len(consumer.Links()))
	}
}

func TestStartConsumerSpanWithoutHeaders(t *testing.T) {
	_, recorder := setupTracerForTest(t)

	// tracer 为 nil 时使用全局 provider
	_, span := StartConsumerSpanFromHeaders(context.Background(), nil, SpanNameMQConsume(""), nil,
		MessagingMeta{System: MessagingSystemNATS})
	span.End()

	consumer := findSpan(t, recorder, "mq.consume")
	if consumer.Parent().IsValid() || len(consumer.Links()) != 0 {
		t.Fatalf("span without headers should be a root span without links")
	}
}

func TestMarkSpanError(t *testing.T) {
	tracer, recorder := setupTracerForTest(t)

	_, ok := tracer.Start(context.Background(), "ok")
	MarkSpanError(ok, nil)
	ok.End()

	_, failed := tracer.Start(context.Background(), "failed")
	MarkSpanError(failed, errors.New("registry unavailable"))
	failed.End()

	MarkSpanError(nil, errors.New("ignored"))

	if got := findSpan(t, recorder, "ok").Status().Code; got != codes.Unset {
		t.Fatalf("status code = %v, want unset", got)
	}
	if got := findSpan(t, recorder, "failed").Status().Code; got != codes.Error {
		t.Fatalf("status code = %v, want error", got)
	}
}

func TestInitValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil", nil},
		{"no service", &Config{Endpoint: "localhost:4317"}},
		{"no endpoint", &Config{ServiceName: "bfa-metrics"}},
		{"sampler", &Config{ServiceName: "bfa-metrics", Endpoint: "localhost:4317", Sampler: 1.5}},
		{"batcher", &Config{ServiceName: "bfa-metrics", Endpoint: "localhost:4317", Sampler: 1, Batcher: "async"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Init(tt.cfg); !xerrors.Is(err, xerrors.ErrInvalidInput) {
				t.Fatalf("Init() error = %v, want invalid input", err)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	shutdown, err := Discard("bfa-metrics")
	if err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	_, span := otel.Tracer("test").Start(context.Background(), "work")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Fatalf("discard provider should still generate trace ids")
	}
}
