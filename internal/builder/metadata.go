package builder

import (
	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// NodePubKey is the key pair a verifier registers with.
type NodePubKey struct {
	BlsPubKey []byte
	PubKey    []byte
}

type MetadataParams struct {
	Version        domain.MetadataVersion
	Epoch          uint64
	GasLimit       uint64
	GasPrice       uint64
	Interval       uint64
	Verifiers      []NodePubKey
	ProposeRatio   uint64
	PrevoteRatio   uint64
	PrecommitRatio uint64
	BrakeRatio     uint64
	TxNumLimit     uint64
	MaxTxSize      uint64
}

// DefaultMetadataParams returns the genesis metadata settings.
func DefaultMetadataParams() MetadataParams {
	return MetadataParams{
		Version:        domain.MetadataVersion{Start: 1, End: 100},
		Epoch:          0,
		GasLimit:       4294967295000,
		GasPrice:       1,
		Interval:       3000,
		ProposeRatio:   15,
		PrevoteRatio:   10,
		PrecommitRatio: 10,
		BrakeRatio:     10,
		TxNumLimit:     2000,
		MaxTxSize:      409600000,
	}
}

func NewMetadata(p MetadataParams) domain.Metadata {
	return domain.Metadata{
		Version:        p.Version,
		Epoch:          p.Epoch,
		GasLimit:       p.GasLimit,
		GasPrice:       p.GasPrice,
		Interval:       p.Interval,
		VerifierList:   NewVerifierList(p.Verifiers),
		ProposeRatio:   p.ProposeRatio,
		PrevoteRatio:   p.PrevoteRatio,
		PrecommitRatio: p.PrecommitRatio,
		BrakeRatio:     p.BrakeRatio,
		TxNumLimit:     p.TxNumLimit,
		MaxTxSize:      p.MaxTxSize,
		ProposeCounter: []domain.ProposeCount{},
	}
}

// NewVerifierList keeps the order of keys and gives every verifier a
// propose and vote weight of 1. Duplicate keys yield duplicate entries.
func NewVerifierList(keys []NodePubKey) []domain.ValidatorExtend {
	verifiers := make([]domain.ValidatorExtend, 0, len(keys))
	for _, key := range keys {
		verifiers = append(verifiers, domain.ValidatorExtend{
			BlsPubKey:     cloneBytes(key.BlsPubKey),
			PubKey:        cloneBytes(key.PubKey),
			Address:       ValidatorAddress(key.PubKey),
			ProposeWeight: 1,
			VoteWeight:    1,
		})
	}
	return verifiers
}

type CkbRelatedInfoParams struct {
	MetadataTypeID    common.Hash
	CheckpointTypeID  common.Hash
	XudtArgs          common.Hash
	StakeSmtTypeID    common.Hash
	DelegateSmtTypeID common.Hash
	RewardSmtTypeID   common.Hash
}

func NewCkbRelatedInfo(p CkbRelatedInfoParams) domain.CkbRelatedInfo {
	return domain.CkbRelatedInfo(p)
}
