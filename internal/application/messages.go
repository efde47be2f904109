package application

import (
	"context"
	"fmt"

	"ckbrelay/internal/builder"
	"ckbrelay/internal/calldata"
	"ckbrelay/internal/domain"
	"ckbrelay/internal/streaming"

	"github.com/ethereum/go-ethereum/common"
)

// CallMessage encodes call and wraps it for the submitter topic.
func CallMessage(encoder calldata.Encoder, msgType streaming.MessageType, call calldata.Call, fromBlock, toBlock uint64) (streaming.Message, error) {
	data, err := encoder.Encode(call)
	if err != nil {
		return streaming.Message{}, err
	}
	return streaming.Message{
		Type:      msgType,
		Contract:  string(call.Contract()),
		Method:    call.Method(),
		Data:      data,
		Items:     call.Len(),
		FromBlock: fromBlock,
		ToBlock:   toBlock,
	}, nil
}

// RollbackCalls undoes orphaned blocks, newest first. blocks must be in
// ascending order as RelayedBlocksFrom returns them.
func RollbackCalls(blocks []domain.RelayedBlock, relayHeaders, relayCells bool) []calldata.Call {
	if len(blocks) == 0 {
		return nil
	}
	hashes := make([]common.Hash, 0, len(blocks))
	rollbacks := make([]calldata.CellBlockRollback, 0, len(blocks))
	for i := len(blocks) - 1; i >= 0; i-- {
		hashes = append(hashes, blocks[i].Hash)
		rollbacks = append(rollbacks, builder.CellBlockRollbackFromRelayed(blocks[i]))
	}
	var calls []calldata.Call
	if relayCells {
		calls = append(calls, calldata.NewCellRollbackCall(rollbacks))
	}
	if relayHeaders {
		calls = append(calls, calldata.NewHeaderRollbackCall(hashes))
	}
	return calls
}

// PublishControl encodes and publishes a single administrative call such as
// setState.
func PublishControl(ctx context.Context, encoder calldata.Encoder, writer CallWriter, call calldata.Call, reason string) (streaming.Message, error) {
	msg, err := CallMessage(encoder, streaming.MessageTypeControl, call, 0, 0)
	if err != nil {
		return streaming.Message{}, err
	}
	msg.Reason = reason
	if err := writer.PublishCalls(ctx, []streaming.Message{msg}); err != nil {
		return streaming.Message{}, fmt.Errorf("publish %s.%s: %w", msg.Contract, msg.Method, err)
	}
	return msg, nil
}
