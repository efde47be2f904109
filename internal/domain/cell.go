package domain

import "github.com/ethereum/go-ethereum/common"

// ScriptHashType selects how a script's code hash is matched against cell
// deps on CKB.
type ScriptHashType uint8

const (
	HashTypeData  ScriptHashType = 0
	HashTypeType  ScriptHashType = 1
	HashTypeData1 ScriptHashType = 2
	HashTypeData2 ScriptHashType = 4
)

// OutPoint identifies a cell by the transaction that created it and its
// position among that transaction's outputs.
type OutPoint struct {
	TxHash common.Hash
	Index  uint32
}

// Script is a lock or type condition attached to a cell.
type Script struct {
	CodeHash common.Hash
	HashType ScriptHashType
	Args     []byte
}

// CellOutput holds exactly one lock and zero or one type script. A cell
// without a type script carries an empty, non-nil Type slice.
type CellOutput struct {
	Capacity uint64
	Lock     Script
	Type     []Script
}

// CellInfo fully identifies a live cell.
type CellInfo struct {
	OutPoint OutPoint
	Output   CellOutput
	Data     []byte
}
