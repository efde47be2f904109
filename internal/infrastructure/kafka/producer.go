package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ckbrelay/internal/infrastructure/telemetry"
	"ckbrelay/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopicPrefix = "ckbrelay-calls"

type Producer struct {
	writer *kafka.Writer
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = defaultTopicPrefix
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 500 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer, prefix: cfg.TopicPrefix}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishCalls writes the messages in order. Messages for one contract share
// a key so they land on one partition and keep their relative order.
func (p *Producer) PublishCalls(ctx context.Context, calls []streaming.Message) error {
	if len(calls) == 0 {
		return nil
	}
	tracer := otel.Tracer("ckbrelay/kafka")
	messages := make([]kafka.Message, 0, len(calls))
	spans := make([]trace.Span, 0, len(calls))
	for _, call := range calls {
		traceID, traceIDHex, ok := telemetry.NewTraceID()
		if !ok {
			traceIDHex = ""
		}
		traceCtx := ctx
		if ok {
			if spanCtx, ok := telemetry.NewSpanContext(traceID); ok {
				traceCtx = trace.ContextWithSpanContext(ctx, spanCtx)
			}
		}
		traceCtx, span := tracer.Start(traceCtx, "relay.publish_call", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.String("call.contract", call.Contract),
			attribute.String("call.method", call.Method),
			attribute.Int("call.items", call.Items),
			attribute.Int("call.bytes", len(call.Data)),
			attribute.Int64("block.from", int64(call.FromBlock)),
			attribute.Int64("block.to", int64(call.ToBlock)),
		)

		call.TraceID = traceIDHex
		payload, err := streaming.Encode(call)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			for _, pending := range spans {
				pending.End()
			}
			return err
		}
		headers := make([]kafka.Header, 0, 2)
		telemetry.InjectKafkaHeaders(traceCtx, &headers)
		messages = append(messages, kafka.Message{
			Topic:   p.TopicFor(call.Contract),
			Key:     []byte(call.Contract),
			Value:   payload,
			Headers: headers,
		})
		spans = append(spans, span)
	}
	err := p.writer.WriteMessages(ctx, messages...)
	if err != nil {
		for _, span := range spans {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	for _, span := range spans {
		span.End()
	}
	return err
}

func (p *Producer) TopicFor(contract string) string {
	return TopicFor(p.prefix, contract)
}

func TopicFor(prefix, contract string) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultTopicPrefix
	}
	return fmt.Sprintf("%s-%s", prefix, contract)
}
