package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ckbrelay/internal/domain"
	"ckbrelay/internal/streaming"

	"github.com/segmentio/kafka-go"
)

// Batch collects audit records for consumed call messages and commits their
// offsets once the records are stored.
type Batch struct {
	records   []domain.CallRecord
	messages  []kafka.Message
	failed    int
	minOffset map[int]int64
	maxOffset map[int]int64
}

func NewBatch() *Batch {
	return &Batch{
		minOffset: make(map[int]int64),
		maxOffset: make(map[int]int64),
	}
}

func (b *Batch) Add(record domain.CallRecord, kafkaMsg kafka.Message) {
	b.records = append(b.records, record)
	b.messages = append(b.messages, kafkaMsg)
	if !record.DecodedOK {
		b.failed++
	}

	partition := kafkaMsg.Partition
	offset := kafkaMsg.Offset
	if low, ok := b.minOffset[partition]; !ok || offset < low {
		b.minOffset[partition] = offset
	}
	if high, ok := b.maxOffset[partition]; !ok || offset > high {
		b.maxOffset[partition] = offset
	}
}

// AddUndecodable commits a message whose envelope could not be read, without
// an audit record.
func (b *Batch) AddUndecodable(kafkaMsg kafka.Message) {
	b.messages = append(b.messages, kafkaMsg)
	b.failed++
}

func (b *Batch) Len() int {
	return len(b.messages)
}

type Committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func (b *Batch) Flush(ctx context.Context, repo CallRecordRepository, committer Committer) error {
	if b.Len() == 0 {
		return nil
	}
	start := time.Now()

	if len(b.records) > 0 {
		if err := repo.StoreCallRecords(ctx, b.records); err != nil {
			return fmt.Errorf("failed to store call records: %w", err)
		}
	}
	if err := committer.CommitMessages(ctx, b.messages...); err != nil {
		return fmt.Errorf("failed to commit kafka messages: %w", err)
	}

	slog.Info("flushed audit batch",
		"count", b.Len(),
		"records", len(b.records),
		"failed", b.failed,
		"offsets", b.offsetRanges(),
		"duration", time.Since(start),
	)
	b.Reset()
	return nil
}

func (b *Batch) offsetRanges() map[int]string {
	ranges := make(map[int]string, len(b.minOffset))
	for partition, low := range b.minOffset {
		ranges[partition] = fmt.Sprintf("%d-%d", low, b.maxOffset[partition])
	}
	return ranges
}

func (b *Batch) Reset() {
	b.records = b.records[:0]
	b.messages = b.messages[:0]
	b.failed = 0
	clear(b.minOffset)
	clear(b.maxOffset)
}

// AuditMessage checks that msg carries a payload the target contract accepts
// and that the payload agrees with the envelope.
func AuditMessage(msg streaming.Message, observedAt time.Time) domain.CallRecord {
	record := domain.CallRecord{
		Contract:    msg.Contract,
		Method:      msg.Method,
		PayloadSize: len(msg.Data),
		Items:       msg.Items,
		FromBlock:   msg.FromBlock,
		ToBlock:     msg.ToBlock,
		TraceID:     msg.TraceID,
		ObservedAt:  observedAt.UTC(),
	}
	if len(msg.Data) >= 4 {
		record.Selector = hexSelector(msg.Data[:4])
	}
	if err := verifyPayload(msg); err != nil {
		record.Error = err.Error()
		return record
	}
	record.DecodedOK = true
	return record
}
