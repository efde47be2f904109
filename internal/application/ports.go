package application

import (
	"context"

	"ckbrelay/internal/ckb"
	"ckbrelay/internal/domain"
	"ckbrelay/internal/streaming"

	"github.com/ethereum/go-ethereum/common"
)

type BlockSource interface {
	TipBlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (ckb.Block, bool, error)
	BlockHash(ctx context.Context, number uint64) (common.Hash, bool, error)
}

type RelayedBlockRepository interface {
	StoreRelayedBlocks(ctx context.Context, blocks []domain.RelayedBlock) error
	RelayedBlock(ctx context.Context, number uint64) (domain.RelayedBlock, bool, error)
	// RelayedBlocksFrom returns blocks at or above fromBlock in ascending order.
	RelayedBlocksFrom(ctx context.Context, fromBlock uint64) ([]domain.RelayedBlock, error)
	DeleteRelayedBlocksFrom(ctx context.Context, fromBlock uint64) error
}

type StateRepository interface {
	LastRelayedBlock(ctx context.Context) (uint64, bool, error)
	SetLastRelayedBlock(ctx context.Context, block uint64) error
	ClearLastRelayedBlock(ctx context.Context) error
}

type RelayRepository interface {
	RelayedBlockRepository
	StateRepository
}

type CallWriter interface {
	PublishCalls(ctx context.Context, calls []streaming.Message) error
}

type CallRecordRepository interface {
	StoreCallRecords(ctx context.Context, records []domain.CallRecord) error
	QueryCallRecords(ctx context.Context, filter CallRecordFilter) ([]domain.CallRecord, error)
}
