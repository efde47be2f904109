package calldata

import (
	"math/big"

	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// The types below mirror the contract structs field for field, in the
// declared order and with the exact ABI widths. go-ethereum packs them by
// name and unpacks them by position, so a reordered field here breaks both.

type outPointABI struct {
	TxHash [32]byte
	Index  uint32
}

type scriptABI struct {
	CodeHash [32]byte
	HashType uint8
	Args     []byte
}

type cellOutputABI struct {
	Capacity uint64
	Lock     scriptABI
	Type     []scriptABI
}

type cellInfoABI struct {
	OutPoint outPointABI
	Output   cellOutputABI
	Data     []byte
}

type blockUpdateABI struct {
	BlockNumber uint64
	TxInputs    []outPointABI
	TxOutputs   []cellInfoABI
}

type blockRollbackABI struct {
	TxInputs  []outPointABI
	TxOutputs []outPointABI
}

type headerABI struct {
	Version          uint32
	CompactTarget    uint32
	Timestamp        uint64
	Number           uint64
	Epoch            uint64
	ParentHash       [32]byte
	TransactionsRoot [32]byte
	ProposalsHash    [32]byte
	ExtraHash        [32]byte
	Dao              [32]byte
	Nonce            *big.Int
	Extension        []byte
	BlockHash        [32]byte
}

type metadataVersionABI struct {
	Start uint64
	End   uint64
}

type validatorExtendABI struct {
	BlsPubKey     []byte
	PubKey        []byte
	Address       common.Address
	ProposeWeight uint32
	VoteWeight    uint32
}

type proposeCountABI struct {
	Address common.Address
	Count   uint64
}

type metadataABIStruct struct {
	Version        metadataVersionABI
	Epoch          uint64
	GasLimit       uint64
	GasPrice       uint64
	Interval       uint64
	VerifierList   []validatorExtendABI
	ProposeRatio   uint64
	PrevoteRatio   uint64
	PrecommitRatio uint64
	BrakeRatio     uint64
	TxNumLimit     uint64
	MaxTxSize      uint64
	ProposeCounter []proposeCountABI
}

type ckbRelatedInfoABI struct {
	MetadataTypeId    [32]byte
	CheckpointTypeId  [32]byte
	XudtArgs          [32]byte
	StakeSmtTypeId    [32]byte
	DelegateSmtTypeId [32]byte
	RewardSmtTypeId   [32]byte
}

func toOutPointABI(op domain.OutPoint) outPointABI {
	return outPointABI{TxHash: op.TxHash, Index: op.Index}
}

func toOutPointsABI(ops []domain.OutPoint) []outPointABI {
	out := make([]outPointABI, 0, len(ops))
	for _, op := range ops {
		out = append(out, toOutPointABI(op))
	}
	return out
}

func toScriptABI(s domain.Script) scriptABI {
	return scriptABI{CodeHash: s.CodeHash, HashType: uint8(s.HashType), Args: nonNil(s.Args)}
}

func toCellInfoABI(c domain.CellInfo) cellInfoABI {
	types := make([]scriptABI, 0, len(c.Output.Type))
	for _, s := range c.Output.Type {
		types = append(types, toScriptABI(s))
	}
	return cellInfoABI{
		OutPoint: toOutPointABI(c.OutPoint),
		Output: cellOutputABI{
			Capacity: c.Output.Capacity,
			Lock:     toScriptABI(c.Output.Lock),
			Type:     types,
		},
		Data: nonNil(c.Data),
	}
}

func toHeaderABI(h domain.Header) headerABI {
	return headerABI{
		Version:          h.Version,
		CompactTarget:    h.CompactTarget,
		Timestamp:        h.Timestamp,
		Number:           h.Number,
		Epoch:            h.Epoch,
		ParentHash:       h.ParentHash,
		TransactionsRoot: h.TransactionsRoot,
		ProposalsHash:    h.ProposalsHash,
		ExtraHash:        h.ExtraHash,
		Dao:              h.Dao,
		Nonce:            h.Nonce.Big(),
		Extension:        nonNil(h.Extension),
		BlockHash:        h.BlockHash,
	}
}

func toMetadataABI(m domain.Metadata) metadataABIStruct {
	verifiers := make([]validatorExtendABI, 0, len(m.VerifierList))
	for _, v := range m.VerifierList {
		verifiers = append(verifiers, validatorExtendABI{
			BlsPubKey:     nonNil(v.BlsPubKey),
			PubKey:        nonNil(v.PubKey),
			Address:       v.Address,
			ProposeWeight: v.ProposeWeight,
			VoteWeight:    v.VoteWeight,
		})
	}
	counters := make([]proposeCountABI, 0, len(m.ProposeCounter))
	for _, c := range m.ProposeCounter {
		counters = append(counters, proposeCountABI{Address: c.Address, Count: c.Count})
	}
	return metadataABIStruct{
		Version:        metadataVersionABI{Start: m.Version.Start, End: m.Version.End},
		Epoch:          m.Epoch,
		GasLimit:       m.GasLimit,
		GasPrice:       m.GasPrice,
		Interval:       m.Interval,
		VerifierList:   verifiers,
		ProposeRatio:   m.ProposeRatio,
		PrevoteRatio:   m.PrevoteRatio,
		PrecommitRatio: m.PrecommitRatio,
		BrakeRatio:     m.BrakeRatio,
		TxNumLimit:     m.TxNumLimit,
		MaxTxSize:      m.MaxTxSize,
		ProposeCounter: counters,
	}
}

func toCkbRelatedInfoABI(info domain.CkbRelatedInfo) ckbRelatedInfoABI {
	return ckbRelatedInfoABI{
		MetadataTypeId:    info.MetadataTypeID,
		CheckpointTypeId:  info.CheckpointTypeID,
		XudtArgs:          info.XudtArgs,
		StakeSmtTypeId:    info.StakeSmtTypeID,
		DelegateSmtTypeId: info.DelegateSmtTypeID,
		RewardSmtTypeId:   info.RewardSmtTypeID,
	}
}

func fromOutPointABI(op outPointABI) domain.OutPoint {
	return domain.OutPoint{TxHash: op.TxHash, Index: op.Index}
}

func fromOutPointsABI(ops []outPointABI) []domain.OutPoint {
	out := make([]domain.OutPoint, 0, len(ops))
	for _, op := range ops {
		out = append(out, fromOutPointABI(op))
	}
	return out
}

func fromScriptABI(s scriptABI) domain.Script {
	return domain.Script{CodeHash: s.CodeHash, HashType: domain.ScriptHashType(s.HashType), Args: nonNil(s.Args)}
}

func fromCellInfoABI(c cellInfoABI) domain.CellInfo {
	types := make([]domain.Script, 0, len(c.Output.Type))
	for _, s := range c.Output.Type {
		types = append(types, fromScriptABI(s))
	}
	return domain.CellInfo{
		OutPoint: fromOutPointABI(c.OutPoint),
		Output: domain.CellOutput{
			Capacity: c.Output.Capacity,
			Lock:     fromScriptABI(c.Output.Lock),
			Type:     types,
		},
		Data: nonNil(c.Data),
	}
}

func fromHeaderABI(h headerABI) (domain.Header, error) {
	nonce, err := domain.Uint128FromBig(h.Nonce)
	if err != nil {
		return domain.Header{}, err
	}
	return domain.Header{
		Version:          h.Version,
		CompactTarget:    h.CompactTarget,
		Timestamp:        h.Timestamp,
		Number:           h.Number,
		Epoch:            h.Epoch,
		ParentHash:       h.ParentHash,
		TransactionsRoot: h.TransactionsRoot,
		ProposalsHash:    h.ProposalsHash,
		ExtraHash:        h.ExtraHash,
		Dao:              h.Dao,
		Nonce:            nonce,
		Extension:        nonNil(h.Extension),
		BlockHash:        h.BlockHash,
	}, nil
}

func fromMetadataABI(m metadataABIStruct) domain.Metadata {
	verifiers := make([]domain.ValidatorExtend, 0, len(m.VerifierList))
	for _, v := range m.VerifierList {
		verifiers = append(verifiers, domain.ValidatorExtend{
			BlsPubKey:     nonNil(v.BlsPubKey),
			PubKey:        nonNil(v.PubKey),
			Address:       v.Address,
			ProposeWeight: v.ProposeWeight,
			VoteWeight:    v.VoteWeight,
		})
	}
	counters := make([]domain.ProposeCount, 0, len(m.ProposeCounter))
	for _, c := range m.ProposeCounter {
		counters = append(counters, domain.ProposeCount{Address: c.Address, Count: c.Count})
	}
	return domain.Metadata{
		Version:        domain.MetadataVersion{Start: m.Version.Start, End: m.Version.End},
		Epoch:          m.Epoch,
		GasLimit:       m.GasLimit,
		GasPrice:       m.GasPrice,
		Interval:       m.Interval,
		VerifierList:   verifiers,
		ProposeRatio:   m.ProposeRatio,
		PrevoteRatio:   m.PrevoteRatio,
		PrecommitRatio: m.PrecommitRatio,
		BrakeRatio:     m.BrakeRatio,
		TxNumLimit:     m.TxNumLimit,
		MaxTxSize:      m.MaxTxSize,
		ProposeCounter: counters,
	}
}

func fromCkbRelatedInfoABI(info ckbRelatedInfoABI) domain.CkbRelatedInfo {
	return domain.CkbRelatedInfo{
		MetadataTypeID:    info.MetadataTypeId,
		CheckpointTypeID:  info.CheckpointTypeId,
		XudtArgs:          info.XudtArgs,
		StakeSmtTypeID:    info.StakeSmtTypeId,
		DelegateSmtTypeID: info.DelegateSmtTypeId,
		RewardSmtTypeID:   info.RewardSmtTypeId,
	}
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
