package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ckbrelay/internal/calldata"
	"ckbrelay/internal/infrastructure/telemetry"
	"ckbrelay/internal/streaming"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	Committer
}

type AuditObserver interface {
	OnCallAudited(topic string, partition int, offset int64, size int, ok bool)
	OnFetchError()
}

type AuditorConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// Auditor decodes every published call back through the contract schemas and
// stores the outcome.
type Auditor struct {
	reader   MessageReader
	repo     CallRecordRepository
	observer AuditObserver
	cfg      AuditorConfig
	now      func() time.Time
}

func NewAuditor(reader MessageReader, repo CallRecordRepository, observer AuditObserver, cfg AuditorConfig) (*Auditor, error) {
	if reader == nil || repo == nil {
		return nil, errors.New("auditor dependencies must not be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Auditor{reader: reader, repo: repo, observer: observer, cfg: cfg, now: time.Now}, nil
}

func (a *Auditor) Run(ctx context.Context) error {
	tracer := otel.Tracer("ckbrelay/auditor")
	batch := NewBatch()
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FlushInterval)
		message, err := a.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return a.flushOnExit(batch, ctx.Err())
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("kafka fetch error", "err", err)
				if a.observer != nil {
					a.observer.OnFetchError()
				}
			}
			if err := batch.Flush(ctx, a.repo, a.reader); err != nil {
				return err
			}
			continue
		}

		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("call message decode error", "topic", message.Topic, "offset", message.Offset, "err", err)
			batch.AddUndecodable(message)
			a.observe(message, false)
		} else {
			msgCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
			if !trace.SpanContextFromContext(msgCtx).IsValid() && decoded.TraceID != "" {
				if withTrace, ok := telemetry.ContextWithTraceID(msgCtx, decoded.TraceID); ok {
					msgCtx = withTrace
				}
			}
			_, span := tracer.Start(msgCtx, "audit.process_call", trace.WithSpanKind(trace.SpanKindConsumer))
			record := AuditMessage(decoded, a.now())
			span.SetAttributes(
				attribute.String("call.contract", record.Contract),
				attribute.String("call.method", record.Method),
				attribute.Bool("call.decoded", record.DecodedOK),
			)
			span.End()
			if !record.DecodedOK {
				slog.Warn("call payload rejected", "contract", record.Contract, "method", record.Method, "err", record.Error)
			}
			batch.Add(record, message)
			a.observe(message, record.DecodedOK)
		}

		if batch.Len() >= a.cfg.BatchSize {
			if err := batch.Flush(ctx, a.repo, a.reader); err != nil {
				return err
			}
		}
	}
}

func (a *Auditor) flushOnExit(batch *Batch, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := batch.Flush(ctx, a.repo, a.reader); err != nil {
		slog.Warn("final audit flush failed", "err", err)
	}
	return cause
}

func (a *Auditor) observe(message kafka.Message, ok bool) {
	if a.observer != nil {
		a.observer.OnCallAudited(message.Topic, message.Partition, message.Offset, len(message.Value), ok)
	}
}

func verifyPayload(msg streaming.Message) error {
	call, err := calldata.Decode(calldata.Contract(msg.Contract), msg.Data)
	if err != nil {
		return err
	}
	if call.Method() != msg.Method {
		return fmt.Errorf("payload encodes %s, envelope says %s", call.Method(), msg.Method)
	}
	if call.Len() != msg.Items {
		return fmt.Errorf("payload carries %d items, envelope says %d", call.Len(), msg.Items)
	}
	return nil
}

func hexSelector(b []byte) string {
	return hexutil.Encode(b)
}
