package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"ckbrelay/internal/calldata"
	"ckbrelay/internal/domain"
	"ckbrelay/internal/streaming"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/segmentio/kafka-go"
)

func setStateMessage(t *testing.T, allow bool) streaming.Message {
	t.Helper()
	msg, err := CallMessage(calldata.NewABIEncoder(), streaming.MessageTypeControl, calldata.NewSetStateCall(allow), 0, 0)
	if err != nil {
		t.Fatalf("call message: %v", err)
	}
	return msg
}

func TestAuditMessage(t *testing.T) {
	observed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := setStateMessage(t, true)

	record := AuditMessage(msg, observed)
	if !record.DecodedOK || record.Error != "" {
		t.Fatalf("valid payload rejected: %q", record.Error)
	}
	selector, _ := calldata.Selector(calldata.LightClient, calldata.MethodSetState)
	if record.Selector != hexutil.Encode(selector[:]) {
		t.Fatalf("selector %s", record.Selector)
	}
	if record.PayloadSize != 36 || !record.ObservedAt.Equal(observed) {
		t.Fatalf("record %+v", record)
	}

	wrongMethod := msg
	wrongMethod.Method = calldata.MethodRollback
	if record := AuditMessage(wrongMethod, observed); record.DecodedOK {
		t.Fatal("method mismatch accepted")
	}
	wrongItems := msg
	wrongItems.Items = 3
	if record := AuditMessage(wrongItems, observed); record.DecodedOK {
		t.Fatal("item count mismatch accepted")
	}
	wrongContract := msg
	wrongContract.Contract = string(calldata.ImageCell)
	if record := AuditMessage(wrongContract, observed); record.DecodedOK || record.Error == "" {
		t.Fatal("payload for another contract accepted")
	}
}

func TestBatchAddAndFlush(t *testing.T) {
	batch := NewBatch()
	repo := &fakeRecordRepo{}
	committer := &fakeCommitter{}
	ctx := context.Background()

	batch.Add(domain.CallRecord{Contract: "light-client", Method: "update", DecodedOK: true}, kafka.Message{Offset: 1})
	batch.Add(domain.CallRecord{Contract: "image-cell", Method: "update"}, kafka.Message{Offset: 2})
	batch.AddUndecodable(kafka.Message{Offset: 3})

	if batch.Len() != 3 {
		t.Errorf("expected batch len 3, got %d", batch.Len())
	}
	if err := batch.Flush(ctx, repo, committer); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if len(repo.records) != 2 {
		t.Errorf("expected 2 records, got %d", len(repo.records))
	}
	if len(committer.committed) != 3 {
		t.Errorf("expected 3 committed messages, got %d", len(committer.committed))
	}
	if batch.Len() != 0 {
		t.Errorf("expected batch len 0 after reset, got %d", batch.Len())
	}
}

func TestBatchFlushKeepsOffsetsOnStoreError(t *testing.T) {
	batch := NewBatch()
	committer := &fakeCommitter{}
	batch.Add(domain.CallRecord{Contract: "light-client"}, kafka.Message{Offset: 9})
	if err := batch.Flush(context.Background(), &fakeRecordRepo{err: errPublish}, committer); err == nil {
		t.Fatal("expected store error")
	}
	if len(committer.committed) != 0 || batch.Len() != 1 {
		t.Fatal("offsets committed despite store failure")
	}
}

func TestAuditorRunStoresRecords(t *testing.T) {
	first, _ := streaming.Encode(setStateMessage(t, true))
	second, _ := streaming.Encode(setStateMessage(t, false))
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "calls-light-client", Offset: 1, Value: first},
		{Topic: "calls-light-client", Offset: 2, Value: second},
		{Topic: "calls-light-client", Offset: 3, Value: []byte("not json")},
	}}
	repo := &fakeRecordRepo{}
	auditor, err := NewAuditor(reader, repo, nil, AuditorConfig{BatchSize: 2, FlushInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new auditor: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := auditor.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run returned %v", err)
	}
	if len(repo.records) != 2 {
		t.Fatalf("stored %d records, want 2", len(repo.records))
	}
	for _, record := range repo.records {
		if !record.DecodedOK {
			t.Fatalf("record rejected: %q", record.Error)
		}
	}
	if len(reader.committed) != 3 {
		t.Fatalf("committed %d messages, want 3", len(reader.committed))
	}
}
