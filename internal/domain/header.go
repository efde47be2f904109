package domain

import "github.com/ethereum/go-ethereum/common"

// Header mirrors a CKB block header as consumed by the light-client contract.
// BlockHash is carried as supplied by the node; the contract is expected to
// re-derive it from the other fields.
type Header struct {
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
	Nonce            Uint128
	Extension        []byte
	BlockHash        common.Hash
}
