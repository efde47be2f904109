// Package builder turns loosely typed source values into canonical records.
// Each record has a Params struct naming every field and a single New
// function; nothing is validated except the derived validator address.
package builder

import (
	"bytes"

	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

type OutPointParams struct {
	TxHash common.Hash
	Index  uint32
}

func NewOutPoint(p OutPointParams) domain.OutPoint {
	return domain.OutPoint{TxHash: p.TxHash, Index: p.Index}
}

type ScriptParams struct {
	CodeHash common.Hash
	HashType domain.ScriptHashType
	Args     []byte
}

func NewScript(p ScriptParams) domain.Script {
	return domain.Script{
		CodeHash: p.CodeHash,
		HashType: p.HashType,
		Args:     cloneBytes(p.Args),
	}
}

type CellOutputParams struct {
	Capacity uint64
	Lock     domain.Script
	// Type is nil when the cell has no type script.
	Type *domain.Script
}

func NewCellOutput(p CellOutputParams) domain.CellOutput {
	types := make([]domain.Script, 0, 1)
	if p.Type != nil {
		types = append(types, copyScript(*p.Type))
	}
	return domain.CellOutput{
		Capacity: p.Capacity,
		Lock:     copyScript(p.Lock),
		Type:     types,
	}
}

type CellInfoParams struct {
	OutPoint domain.OutPoint
	Output   domain.CellOutput
	Data     []byte
}

func NewCellInfo(p CellInfoParams) domain.CellInfo {
	output := domain.CellOutput{
		Capacity: p.Output.Capacity,
		Lock:     copyScript(p.Output.Lock),
		Type:     make([]domain.Script, 0, len(p.Output.Type)),
	}
	for _, script := range p.Output.Type {
		output.Type = append(output.Type, copyScript(script))
	}
	return domain.CellInfo{
		OutPoint: p.OutPoint,
		Output:   output,
		Data:     cloneBytes(p.Data),
	}
}

func copyScript(s domain.Script) domain.Script {
	s.Args = cloneBytes(s.Args)
	return s
}

// cloneBytes never returns nil so empty byte fields encode the same way
// whether or not the caller set them.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return bytes.Clone(b)
}
