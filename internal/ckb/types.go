// Package ckb holds CKB node views already decoded from JSON-RPC into
// fixed-width numbers and byte arrays.
package ckb

import "github.com/ethereum/go-ethereum/common"

type Script struct {
	CodeHash common.Hash
	HashType string
	Args     []byte
}

type OutPoint struct {
	TxHash common.Hash
	Index  uint32
}

type CellInput struct {
	PreviousOutput OutPoint
	Since          uint64
}

type CellOutput struct {
	Capacity uint64
	Lock     Script
	Type     *Script
}

type Transaction struct {
	Hash        common.Hash
	Version     uint32
	Inputs      []CellInput
	Outputs     []CellOutput
	OutputsData [][]byte
	Witnesses   [][]byte
}

// HeaderView is a header together with its hash as reported by the node.
type HeaderView struct {
	Version          uint32
	CompactTarget    uint32
	Timestamp        uint64
	Number           uint64
	Epoch            uint64
	ParentHash       common.Hash
	TransactionsRoot common.Hash
	ProposalsHash    common.Hash
	ExtraHash        common.Hash
	Dao              common.Hash
	Nonce            [16]byte
	Hash             common.Hash
}

type Block struct {
	Header       HeaderView
	Transactions []Transaction
	Extension    []byte
}

// IsCellbase reports whether the input spends nothing, which is the case
// for the first transaction of every block.
func (in CellInput) IsCellbase() bool {
	return in.PreviousOutput.TxHash == (common.Hash{}) && in.PreviousOutput.Index == ^uint32(0)
}
