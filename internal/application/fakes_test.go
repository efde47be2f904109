package application

import (
	"context"
	"errors"
	"sort"
	"sync"

	"ckbrelay/internal/ckb"
	"ckbrelay/internal/domain"
	"ckbrelay/internal/streaming"

	"github.com/ethereum/go-ethereum/common"
	"github.com/segmentio/kafka-go"
)

// fakeChain serves blocks 0..tip. fork changes the hash of every block at or
// above forkFrom. hashType overrides the lock script hash type of every
// output.
type fakeChain struct {
	tip      uint64
	forkFrom uint64
	fork     byte
	hashType string
}

func blockHash(number uint64, fork byte) common.Hash {
	return common.BytesToHash([]byte{0xb1, fork, byte(number >> 8), byte(number)})
}

func (c *fakeChain) hashAt(number uint64) common.Hash {
	if c.fork != 0 && number >= c.forkFrom {
		return blockHash(number, c.fork)
	}
	return blockHash(number, 0)
}

func (c *fakeChain) TipBlockNumber(context.Context) (uint64, error) {
	return c.tip, nil
}

func (c *fakeChain) BlockHash(_ context.Context, number uint64) (common.Hash, bool, error) {
	if number > c.tip {
		return common.Hash{}, false, nil
	}
	return c.hashAt(number), true, nil
}

func (c *fakeChain) BlockByNumber(_ context.Context, number uint64) (ckb.Block, bool, error) {
	if number > c.tip {
		return ckb.Block{}, false, nil
	}
	var parent common.Hash
	if number > 0 {
		parent = c.hashAt(number - 1)
	}
	hashType := "type"
	if c.hashType != "" {
		hashType = c.hashType
	}
	lock := ckb.Script{CodeHash: common.HexToHash("0x10"), HashType: hashType, Args: []byte{byte(number)}}
	txHash := common.BytesToHash([]byte{0x7a, byte(number)})
	return ckb.Block{
		Header: ckb.HeaderView{
			Version:    0,
			Number:     number,
			Timestamp:  1_700_000_000_000 + number,
			ParentHash: parent,
			Hash:       c.hashAt(number),
		},
		Transactions: []ckb.Transaction{
			{
				Hash:        common.BytesToHash([]byte{0xcb, byte(number)}),
				Inputs:      []ckb.CellInput{{PreviousOutput: ckb.OutPoint{Index: ^uint32(0)}}},
				Outputs:     []ckb.CellOutput{{Capacity: 1000, Lock: lock}},
				OutputsData: [][]byte{{}},
			},
			{
				Hash:        txHash,
				Inputs:      []ckb.CellInput{{PreviousOutput: ckb.OutPoint{TxHash: common.HexToHash("0xfeed"), Index: uint32(number)}}},
				Outputs:     []ckb.CellOutput{{Capacity: 500, Lock: lock}},
				OutputsData: [][]byte{{byte(number)}},
			},
		},
	}, true, nil
}

type fakeRelayRepo struct {
	blocks map[uint64]domain.RelayedBlock
	last   *uint64
}

func newFakeRelayRepo() *fakeRelayRepo {
	return &fakeRelayRepo{blocks: make(map[uint64]domain.RelayedBlock)}
}

func (r *fakeRelayRepo) StoreRelayedBlocks(_ context.Context, blocks []domain.RelayedBlock) error {
	for _, block := range blocks {
		r.blocks[block.Number] = block
	}
	return nil
}

func (r *fakeRelayRepo) RelayedBlock(_ context.Context, number uint64) (domain.RelayedBlock, bool, error) {
	block, ok := r.blocks[number]
	return block, ok, nil
}

func (r *fakeRelayRepo) RelayedBlocksFrom(_ context.Context, from uint64) ([]domain.RelayedBlock, error) {
	var out []domain.RelayedBlock
	for number, block := range r.blocks {
		if number >= from {
			out = append(out, block)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *fakeRelayRepo) DeleteRelayedBlocksFrom(_ context.Context, from uint64) error {
	for number := range r.blocks {
		if number >= from {
			delete(r.blocks, number)
		}
	}
	return nil
}

func (r *fakeRelayRepo) LastRelayedBlock(context.Context) (uint64, bool, error) {
	if r.last == nil {
		return 0, false, nil
	}
	return *r.last, true, nil
}

func (r *fakeRelayRepo) SetLastRelayedBlock(_ context.Context, block uint64) error {
	r.last = &block
	return nil
}

func (r *fakeRelayRepo) ClearLastRelayedBlock(context.Context) error {
	r.last = nil
	return nil
}

type fakeWriter struct {
	messages []streaming.Message
	err      error
}

func (w *fakeWriter) PublishCalls(_ context.Context, calls []streaming.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, calls...)
	return nil
}

type fakeRecordRepo struct {
	records []domain.CallRecord
	err     error
}

func (r *fakeRecordRepo) StoreCallRecords(_ context.Context, records []domain.CallRecord) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, records...)
	return nil
}

func (r *fakeRecordRepo) QueryCallRecords(context.Context, CallRecordFilter) ([]domain.CallRecord, error) {
	return r.records, nil
}

type fakeCommitter struct {
	committed []kafka.Message
}

func (c *fakeCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	c.committed = append(c.committed, msgs...)
	return nil
}

// fakeReader hands out queued messages, then blocks until the context ends.
type fakeReader struct {
	fakeCommitter
	mu    sync.Mutex
	queue []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

var errPublish = errors.New("broker unavailable")
