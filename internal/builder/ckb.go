package builder

import (
	"encoding/binary"
	"fmt"

	"ckbrelay/internal/calldata"
	"ckbrelay/internal/ckb"
	"ckbrelay/internal/domain"
)

// ParseHashType maps the node's hash_type string onto its on-chain byte.
func ParseHashType(raw string) (domain.ScriptHashType, error) {
	switch raw {
	case "data":
		return domain.HashTypeData, nil
	case "type":
		return domain.HashTypeType, nil
	case "data1":
		return domain.HashTypeData1, nil
	case "data2":
		return domain.HashTypeData2, nil
	default:
		return 0, fmt.Errorf("unknown script hash_type %q", raw)
	}
}

func ScriptFromView(view ckb.Script) (domain.Script, error) {
	hashType, err := ParseHashType(view.HashType)
	if err != nil {
		return domain.Script{}, err
	}
	return NewScript(ScriptParams{
		CodeHash: view.CodeHash,
		HashType: hashType,
		Args:     view.Args,
	}), nil
}

// NonceFromBytes reads a big-endian 128-bit nonce.
func NonceFromBytes(b [16]byte) domain.Uint128 {
	return domain.Uint128{
		Hi: binary.BigEndian.Uint64(b[:8]),
		Lo: binary.BigEndian.Uint64(b[8:]),
	}
}

func HeaderFromView(view ckb.HeaderView, extension []byte) domain.Header {
	return NewHeader(HeaderParams{
		Version:          view.Version,
		CompactTarget:    view.CompactTarget,
		Timestamp:        view.Timestamp,
		Number:           view.Number,
		Epoch:            view.Epoch,
		ParentHash:       view.ParentHash,
		TransactionsRoot: view.TransactionsRoot,
		ProposalsHash:    view.ProposalsHash,
		ExtraHash:        view.ExtraHash,
		Dao:              view.Dao,
		Nonce:            NonceFromBytes(view.Nonce),
		Extension:        extension,
		BlockHash:        view.Hash,
	})
}

// CellBlockUpdateFromBlock collects the cells a block consumes and creates.
// Cellbase inputs spend nothing and are skipped.
func CellBlockUpdateFromBlock(block ckb.Block) (calldata.CellBlockUpdate, error) {
	var (
		inputs  []domain.OutPoint
		outputs []domain.CellInfo
	)
	for _, tx := range block.Transactions {
		for _, in := range tx.Inputs {
			if in.IsCellbase() {
				continue
			}
			inputs = append(inputs, NewOutPoint(OutPointParams{
				TxHash: in.PreviousOutput.TxHash,
				Index:  in.PreviousOutput.Index,
			}))
		}
		for i, out := range tx.Outputs {
			info, err := cellInfoFromOutput(tx, i, out)
			if err != nil {
				return calldata.CellBlockUpdate{}, fmt.Errorf("tx %s output %d: %w", tx.Hash.Hex(), i, err)
			}
			outputs = append(outputs, info)
		}
	}
	return calldata.NewCellBlockUpdate(block.Header.Number, inputs, outputs), nil
}

func cellInfoFromOutput(tx ckb.Transaction, index int, out ckb.CellOutput) (domain.CellInfo, error) {
	lock, err := ScriptFromView(out.Lock)
	if err != nil {
		return domain.CellInfo{}, err
	}
	var typeScript *domain.Script
	if out.Type != nil {
		script, err := ScriptFromView(*out.Type)
		if err != nil {
			return domain.CellInfo{}, err
		}
		typeScript = &script
	}
	var data []byte
	if index < len(tx.OutputsData) {
		data = tx.OutputsData[index]
	}
	return NewCellInfo(CellInfoParams{
		OutPoint: NewOutPoint(OutPointParams{
			TxHash: tx.Hash,
			Index:  uint32(index),
		}),
		Output: NewCellOutput(CellOutputParams{
			Capacity: out.Capacity,
			Lock:     lock,
			Type:     typeScript,
		}),
		Data: data,
	}), nil
}

// RelayedBlockFromUpdate records the outpoints an update touched so the
// block can later be rolled back.
func RelayedBlockFromUpdate(header domain.Header, update calldata.CellBlockUpdate) domain.RelayedBlock {
	outputs := make([]domain.OutPoint, 0, len(update.Outputs))
	for _, cell := range update.Outputs {
		outputs = append(outputs, cell.OutPoint)
	}
	inputs := make([]domain.OutPoint, len(update.Inputs))
	copy(inputs, update.Inputs)
	return domain.RelayedBlock{
		Number:  header.Number,
		Hash:    header.BlockHash,
		Inputs:  inputs,
		Outputs: outputs,
	}
}

// CellBlockRollbackFromRelayed reverses a relayed block: cells it consumed
// come back, cells it created are dropped.
func CellBlockRollbackFromRelayed(block domain.RelayedBlock) calldata.CellBlockRollback {
	return calldata.NewCellBlockRollback(block.Inputs, block.Outputs)
}
