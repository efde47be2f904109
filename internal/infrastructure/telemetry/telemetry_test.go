package telemetry

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _, ok := NewTraceID()
	if !ok {
		t.Fatal("trace id")
	}
	spanCtx, ok := NewSpanContext(traceID)
	if !ok {
		t.Fatal("span context")
	}
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	headers := []kafka.Header{{Key: "Traceparent", Value: []byte("stale")}}
	InjectKafkaHeaders(ctx, &headers)
	if len(headers) != 1 {
		t.Fatalf("expected header to be replaced, got %d headers", len(headers))
	}

	extracted := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	if extracted.TraceID() != traceID || !extracted.IsRemote() {
		t.Fatalf("extracted %v remote=%v", extracted.TraceID(), extracted.IsRemote())
	}
}

func TestContextWithTraceID(t *testing.T) {
	_, hexID, ok := NewTraceID()
	if !ok {
		t.Fatal("trace id")
	}
	ctx, ok := ContextWithTraceID(context.Background(), hexID)
	if !ok {
		t.Fatal("expected trace id to parse")
	}
	if got := trace.SpanContextFromContext(ctx).TraceID().String(); got != hexID {
		t.Fatalf("trace id %s, want %s", got, hexID)
	}
	if _, ok := ContextWithTraceID(context.Background(), "zz"); ok {
		t.Fatal("expected invalid trace id to be rejected")
	}
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracerConfig{ServiceName: "ckbrelay-test"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
