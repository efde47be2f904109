package calldata

import (
	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// Call is one assembled contract invocation. Args returns the values in the
// shape the contract's ABI declares.
type Call interface {
	Contract() Contract
	Method() string
	Args() []any
	// Len is the number of top-level items carried by the call.
	Len() int
}

// CellBlockUpdate is the image-cell change set of one CKB block.
type CellBlockUpdate struct {
	BlockNumber uint64
	Inputs      []domain.OutPoint
	Outputs     []domain.CellInfo
}

func NewCellBlockUpdate(blockNumber uint64, inputs []domain.OutPoint, outputs []domain.CellInfo) CellBlockUpdate {
	return CellBlockUpdate{BlockNumber: blockNumber, Inputs: inputs, Outputs: outputs}
}

// CellBlockRollback undoes one block by outpoint only: Inputs are restored,
// Outputs are removed.
type CellBlockRollback struct {
	Inputs  []domain.OutPoint
	Outputs []domain.OutPoint
}

func NewCellBlockRollback(inputs, outputs []domain.OutPoint) CellBlockRollback {
	return CellBlockRollback{Inputs: inputs, Outputs: outputs}
}

// CellUpdateCall relays blocks in the order given; callers supply them in
// ascending block number.
type CellUpdateCall struct {
	Blocks []CellBlockUpdate
}

func NewCellUpdateCall(blocks []CellBlockUpdate) CellUpdateCall {
	return CellUpdateCall{Blocks: blocks}
}

func (c CellUpdateCall) Contract() Contract { return ImageCell }
func (c CellUpdateCall) Method() string     { return MethodUpdate }
func (c CellUpdateCall) Len() int           { return len(c.Blocks) }

func (c CellUpdateCall) Args() []any {
	blocks := make([]blockUpdateABI, 0, len(c.Blocks))
	for _, block := range c.Blocks {
		outputs := make([]cellInfoABI, 0, len(block.Outputs))
		for _, cell := range block.Outputs {
			outputs = append(outputs, toCellInfoABI(cell))
		}
		blocks = append(blocks, blockUpdateABI{
			BlockNumber: block.BlockNumber,
			TxInputs:    toOutPointsABI(block.Inputs),
			TxOutputs:   outputs,
		})
	}
	return []any{blocks}
}

type CellRollbackCall struct {
	Blocks []CellBlockRollback
}

func NewCellRollbackCall(blocks []CellBlockRollback) CellRollbackCall {
	return CellRollbackCall{Blocks: blocks}
}

func (c CellRollbackCall) Contract() Contract { return ImageCell }
func (c CellRollbackCall) Method() string     { return MethodRollback }
func (c CellRollbackCall) Len() int           { return len(c.Blocks) }

func (c CellRollbackCall) Args() []any {
	blocks := make([]blockRollbackABI, 0, len(c.Blocks))
	for _, block := range c.Blocks {
		blocks = append(blocks, blockRollbackABI{
			TxInputs:  toOutPointsABI(block.Inputs),
			TxOutputs: toOutPointsABI(block.Outputs),
		})
	}
	return []any{blocks}
}

type HeaderUpdateCall struct {
	Headers []domain.Header
}

func NewHeaderUpdateCall(headers []domain.Header) HeaderUpdateCall {
	return HeaderUpdateCall{Headers: headers}
}

func (c HeaderUpdateCall) Contract() Contract { return LightClient }
func (c HeaderUpdateCall) Method() string     { return MethodUpdate }
func (c HeaderUpdateCall) Len() int           { return len(c.Headers) }

func (c HeaderUpdateCall) Args() []any {
	headers := make([]headerABI, 0, len(c.Headers))
	for _, header := range c.Headers {
		headers = append(headers, toHeaderABI(header))
	}
	return []any{headers}
}

// HeaderRollbackCall excises the given block hashes from the light client.
type HeaderRollbackCall struct {
	BlockHashes []common.Hash
}

func NewHeaderRollbackCall(hashes []common.Hash) HeaderRollbackCall {
	return HeaderRollbackCall{BlockHashes: hashes}
}

func (c HeaderRollbackCall) Contract() Contract { return LightClient }
func (c HeaderRollbackCall) Method() string     { return MethodRollback }
func (c HeaderRollbackCall) Len() int           { return len(c.BlockHashes) }

func (c HeaderRollbackCall) Args() []any {
	hashes := make([][32]byte, 0, len(c.BlockHashes))
	for _, hash := range c.BlockHashes {
		hashes = append(hashes, hash)
	}
	return []any{hashes}
}

// SetStateCall toggles whether the light client answers read queries.
type SetStateCall struct {
	AllowRead bool
}

func NewSetStateCall(allowRead bool) SetStateCall {
	return SetStateCall{AllowRead: allowRead}
}

func (c SetStateCall) Contract() Contract { return LightClient }
func (c SetStateCall) Method() string     { return MethodSetState }
func (c SetStateCall) Len() int           { return 1 }
func (c SetStateCall) Args() []any        { return []any{c.AllowRead} }

type AppendMetadataCall struct {
	Metadata domain.Metadata
}

func NewAppendMetadataCall(metadata domain.Metadata) AppendMetadataCall {
	return AppendMetadataCall{Metadata: metadata}
}

func (c AppendMetadataCall) Contract() Contract { return Metadata }
func (c AppendMetadataCall) Method() string     { return MethodAppendMetadata }
func (c AppendMetadataCall) Len() int           { return 1 }
func (c AppendMetadataCall) Args() []any        { return []any{toMetadataABI(c.Metadata)} }

type SetCkbRelatedInfoCall struct {
	Info domain.CkbRelatedInfo
}

func NewSetCkbRelatedInfoCall(info domain.CkbRelatedInfo) SetCkbRelatedInfoCall {
	return SetCkbRelatedInfoCall{Info: info}
}

func (c SetCkbRelatedInfoCall) Contract() Contract { return Metadata }
func (c SetCkbRelatedInfoCall) Method() string     { return MethodSetCkbRelatedInfo }
func (c SetCkbRelatedInfoCall) Len() int           { return 1 }
func (c SetCkbRelatedInfoCall) Args() []any        { return []any{toCkbRelatedInfoABI(c.Info)} }
