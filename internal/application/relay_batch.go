package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ckbrelay/internal/builder"
	"ckbrelay/internal/calldata"
	"ckbrelay/internal/ckb"
	"ckbrelay/internal/domain"
	"ckbrelay/internal/streaming"
)

// RelayBatch accumulates consecutive CKB blocks into one light-client update
// and one image-cell update.
type RelayBatch struct {
	relayHeaders bool
	relayCells   bool

	headers []domain.Header
	updates []calldata.CellBlockUpdate
	relayed []domain.RelayedBlock
	from    uint64
	to      uint64
}

func NewRelayBatch(relayHeaders, relayCells bool) *RelayBatch {
	return &RelayBatch{relayHeaders: relayHeaders, relayCells: relayCells}
}

// Add appends block. Blocks must arrive in ascending, gapless order.
func (b *RelayBatch) Add(block ckb.Block) error {
	number := block.Header.Number
	if len(b.relayed) > 0 && number != b.to+1 {
		return fmt.Errorf("block %d does not follow %d", number, b.to)
	}
	header := builder.HeaderFromView(block.Header, block.Extension)
	relayed := domain.RelayedBlock{Number: number, Hash: header.BlockHash}
	// Cells are only translated when they are relayed.
	if b.relayCells {
		update, err := builder.CellBlockUpdateFromBlock(block)
		if err != nil {
			return fmt.Errorf("block %d: %w", number, err)
		}
		b.updates = append(b.updates, update)
		relayed = builder.RelayedBlockFromUpdate(header, update)
	}
	if len(b.relayed) == 0 {
		b.from = number
	}
	b.to = number
	b.headers = append(b.headers, header)
	b.relayed = append(b.relayed, relayed)
	return nil
}

func (b *RelayBatch) Len() int {
	return len(b.relayed)
}

func (b *RelayBatch) Range() (uint64, uint64) {
	return b.from, b.to
}

func (b *RelayBatch) Calls() []calldata.Call {
	if b.Len() == 0 {
		return nil
	}
	var calls []calldata.Call
	if b.relayHeaders {
		calls = append(calls, calldata.NewHeaderUpdateCall(b.headers))
	}
	if b.relayCells {
		calls = append(calls, calldata.NewCellUpdateCall(b.updates))
	}
	return calls
}

func (b *RelayBatch) Messages(encoder calldata.Encoder) ([]streaming.Message, error) {
	calls := b.Calls()
	messages := make([]streaming.Message, 0, len(calls))
	for _, call := range calls {
		msg, err := CallMessage(encoder, streaming.MessageTypeUpdate, call, b.from, b.to)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Flush publishes the batch, records what was relayed and advances the
// relay cursor. Nothing is recorded if publishing fails.
func (b *RelayBatch) Flush(ctx context.Context, encoder calldata.Encoder, writer CallWriter, repo RelayRepository) error {
	if b.Len() == 0 {
		return nil
	}
	start := time.Now()

	messages, err := b.Messages(encoder)
	if err != nil {
		return fmt.Errorf("failed to encode blocks %d-%d: %w", b.from, b.to, err)
	}
	if err := writer.PublishCalls(ctx, messages); err != nil {
		return fmt.Errorf("failed to publish calls: %w", err)
	}
	if err := repo.StoreRelayedBlocks(ctx, b.relayed); err != nil {
		return fmt.Errorf("failed to store relayed blocks: %w", err)
	}
	if err := repo.SetLastRelayedBlock(ctx, b.to); err != nil {
		return fmt.Errorf("failed to update relay state: %w", err)
	}

	bytes := 0
	for _, msg := range messages {
		bytes += len(msg.Data)
	}
	slog.Info("flushed relay batch",
		"from", b.from,
		"to", b.to,
		"calls", len(messages),
		"bytes", bytes,
		"duration", time.Since(start),
	)
	b.Reset()
	return nil
}

func (b *RelayBatch) CellCount() int {
	count := 0
	for _, update := range b.updates {
		count += len(update.Outputs)
	}
	return count
}

func (b *RelayBatch) Reset() {
	b.headers = nil
	b.updates = nil
	b.relayed = nil
	b.from, b.to = 0, 0
}
