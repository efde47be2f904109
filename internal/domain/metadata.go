package domain

import "github.com/ethereum/go-ethereum/common"

type MetadataVersion struct {
	Start uint64
	End   uint64
}

// ValidatorExtend is a verifier entry. Address is always derived from PubKey.
type ValidatorExtend struct {
	BlsPubKey     []byte
	PubKey        []byte
	Address       common.Address
	ProposeWeight uint32
	VoteWeight    uint32
}

type ProposeCount struct {
	Address common.Address
	Count   uint64
}

// Metadata is the consensus configuration of one metadata epoch range.
// VerifierList order is the on-chain validator index order.
type Metadata struct {
	Version        MetadataVersion
	Epoch          uint64
	GasLimit       uint64
	GasPrice       uint64
	Interval       uint64
	VerifierList   []ValidatorExtend
	ProposeRatio   uint64
	PrevoteRatio   uint64
	PrecommitRatio uint64
	BrakeRatio     uint64
	TxNumLimit     uint64
	MaxTxSize      uint64
	ProposeCounter []ProposeCount
}

// CkbRelatedInfo points at the companion scripts deployed on CKB.
type CkbRelatedInfo struct {
	MetadataTypeID    common.Hash
	CheckpointTypeID  common.Hash
	XudtArgs          common.Hash
	StakeSmtTypeID    common.Hash
	DelegateSmtTypeID common.Hash
	RewardSmtTypeID   common.Hash
}
