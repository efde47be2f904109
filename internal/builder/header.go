package builder

import (
	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

type HeaderParams struct {
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
	Nonce            domain.Uint128
	Extension        []byte
	BlockHash        common.Hash
}

// NewHeader transports every field as given; BlockHash is not recomputed.
func NewHeader(p HeaderParams) domain.Header {
	return domain.Header{
		Version:          p.Version,
		CompactTarget:    p.CompactTarget,
		Timestamp:        p.Timestamp,
		Number:           p.Number,
		Epoch:            p.Epoch,
		ParentHash:       p.ParentHash,
		TransactionsRoot: p.TransactionsRoot,
		ProposalsHash:    p.ProposalsHash,
		ExtraHash:        p.ExtraHash,
		Dao:              p.Dao,
		Nonce:            p.Nonce,
		Extension:        cloneBytes(p.Extension),
		BlockHash:        p.BlockHash,
	}
}
