package domain

import "github.com/ethereum/go-ethereum/common"

// RelayedBlock remembers what was relayed for a CKB block so the relay can
// undo it when the block is orphaned.
type RelayedBlock struct {
	Number  uint64
	Hash    common.Hash
	Inputs  []OutPoint
	Outputs []OutPoint
}
