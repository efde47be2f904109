package builder

import (
	"math/big"
	"reflect"
	"testing"

	"ckbrelay/internal/ckb"
	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func TestValidatorAddressFixtures(t *testing.T) {
	tests := []struct {
		name   string
		pubKey string
		want   string
	}{
		{
			name:   "empty key",
			pubKey: "0x",
			want:   "0xdcc703c0e500b653ca82273b7bfad8045d85a470",
		},
		{
			name:   "secp256k1 generator point",
			pubKey: "0x79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8",
			want:   "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatorAddress(hexutil.MustDecode(tt.pubKey))
			if got != common.HexToAddress(tt.want) {
				t.Fatalf("address %s, want %s", got.Hex(), tt.want)
			}
		})
	}
}

func TestNewVerifierListKeepsOrderAndDuplicates(t *testing.T) {
	keys := []NodePubKey{
		{BlsPubKey: []byte{0xb3}, PubKey: []byte{0x03}},
		{BlsPubKey: []byte{0xb1}, PubKey: []byte{0x01}},
		{BlsPubKey: []byte{0xb3}, PubKey: []byte{0x03}},
	}
	list := NewVerifierList(keys)
	if len(list) != len(keys) {
		t.Fatalf("got %d verifiers, want %d", len(list), len(keys))
	}
	for i, v := range list {
		if !reflect.DeepEqual(v.PubKey, keys[i].PubKey) || !reflect.DeepEqual(v.BlsPubKey, keys[i].BlsPubKey) {
			t.Fatalf("verifier %d out of order: %+v", i, v)
		}
		if v.Address != ValidatorAddress(keys[i].PubKey) {
			t.Fatalf("verifier %d address %s not derived from its key", i, v.Address.Hex())
		}
		if v.ProposeWeight != 1 || v.VoteWeight != 1 {
			t.Fatalf("verifier %d weights %d/%d, want 1/1", i, v.ProposeWeight, v.VoteWeight)
		}
	}
	if list[0].Address != list[2].Address {
		t.Fatal("duplicate keys should produce duplicate addresses")
	}
}

func TestNewMetadataDefaults(t *testing.T) {
	params := DefaultMetadataParams()
	params.Epoch = 7
	params.Verifiers = []NodePubKey{{BlsPubKey: []byte{1}, PubKey: []byte{2}}}
	m := NewMetadata(params)

	if m.Version != (domain.MetadataVersion{Start: 1, End: 100}) {
		t.Fatalf("version %+v", m.Version)
	}
	if m.Epoch != 7 || m.GasLimit != 4294967295000 || m.GasPrice != 1 || m.Interval != 3000 {
		t.Fatalf("unexpected scalar defaults: %+v", m)
	}
	if m.ProposeRatio != 15 || m.PrevoteRatio != 10 || m.PrecommitRatio != 10 || m.BrakeRatio != 10 {
		t.Fatalf("unexpected ratios: %+v", m)
	}
	if m.TxNumLimit != 2000 || m.MaxTxSize != 409600000 {
		t.Fatalf("unexpected limits: %+v", m)
	}
	if m.ProposeCounter == nil || len(m.ProposeCounter) != 0 {
		t.Fatalf("propose counter should be empty, got %v", m.ProposeCounter)
	}
	if len(m.VerifierList) != 1 || m.VerifierList[0].Address != ValidatorAddress([]byte{2}) {
		t.Fatalf("verifier list %+v", m.VerifierList)
	}
}

func TestNewCellOutputTypeScript(t *testing.T) {
	lock := NewScript(ScriptParams{CodeHash: common.HexToHash("0xaa"), HashType: domain.HashTypeType})
	without := NewCellOutput(CellOutputParams{Capacity: 1, Lock: lock})
	if without.Type == nil || len(without.Type) != 0 {
		t.Fatalf("missing type script should be an empty slice, got %#v", without.Type)
	}
	if without.Lock.Args == nil {
		t.Fatal("unset args should be empty, not nil")
	}

	typ := NewScript(ScriptParams{CodeHash: common.HexToHash("0xbb"), HashType: domain.HashTypeData1, Args: []byte{9}})
	with := NewCellOutput(CellOutputParams{Capacity: 1, Lock: lock, Type: &typ})
	if len(with.Type) != 1 || !reflect.DeepEqual(with.Type[0], typ) {
		t.Fatalf("type script not carried: %+v", with.Type)
	}
}

func TestBuiltRecordsDoNotAliasInput(t *testing.T) {
	args := []byte{1, 2, 3}
	data := []byte{4, 5}
	script := NewScript(ScriptParams{Args: args})
	cell := NewCellInfo(CellInfoParams{
		Output: NewCellOutput(CellOutputParams{Lock: script}),
		Data:   data,
	})
	args[0] = 0xff
	data[0] = 0xff
	if script.Args[0] != 1 || cell.Output.Lock.Args[0] != 1 || cell.Data[0] != 4 {
		t.Fatal("record changed after caller mutated its input")
	}
}

func TestHeaderFromView(t *testing.T) {
	view := ckb.HeaderView{
		Version:          0,
		CompactTarget:    0x1a08a97e,
		Timestamp:        1557311767838,
		Number:           9416528,
		Epoch:            0x7080291000032,
		ParentHash:       common.HexToHash("0x01"),
		TransactionsRoot: common.HexToHash("0x02"),
		ProposalsHash:    common.HexToHash("0x03"),
		ExtraHash:        common.HexToHash("0x04"),
		Dao:              common.HexToHash("0x05"),
		Nonce:            [16]byte{0: 0x01, 15: 0x02},
		Hash:             common.HexToHash("0x06"),
	}
	header := HeaderFromView(view, []byte{0xee})
	if header.Number != view.Number || header.Epoch != view.Epoch || header.CompactTarget != view.CompactTarget {
		t.Fatalf("scalar fields not transported: %+v", header)
	}
	if header.BlockHash != view.Hash {
		t.Fatalf("block hash %s, want %s", header.BlockHash.Hex(), view.Hash.Hex())
	}
	wantNonce := new(big.Int).Lsh(big.NewInt(1), 120)
	wantNonce.Add(wantNonce, big.NewInt(2))
	if header.Nonce.Big().Cmp(wantNonce) != 0 {
		t.Fatalf("nonce %s, want %s", header.Nonce.Big(), wantNonce)
	}
	if !reflect.DeepEqual(header.Extension, []byte{0xee}) {
		t.Fatalf("extension %x", header.Extension)
	}
}

func TestCellBlockUpdateFromBlock(t *testing.T) {
	cellbaseHash := common.HexToHash("0xc0")
	txHash := common.HexToHash("0xd0")
	spent := ckb.OutPoint{TxHash: common.HexToHash("0xe0"), Index: 3}
	lock := ckb.Script{CodeHash: common.HexToHash("0xaa"), HashType: "type", Args: []byte{1}}
	typ := ckb.Script{CodeHash: common.HexToHash("0xbb"), HashType: "data2"}

	block := ckb.Block{
		Header: ckb.HeaderView{Number: 100},
		Transactions: []ckb.Transaction{
			{
				Hash:        cellbaseHash,
				Inputs:      []ckb.CellInput{{PreviousOutput: ckb.OutPoint{Index: ^uint32(0)}}},
				Outputs:     []ckb.CellOutput{{Capacity: 10, Lock: lock}},
				OutputsData: [][]byte{{}},
			},
			{
				Hash:        txHash,
				Inputs:      []ckb.CellInput{{PreviousOutput: spent}},
				Outputs:     []ckb.CellOutput{{Capacity: 20, Lock: lock, Type: &typ}, {Capacity: 30, Lock: lock}},
				OutputsData: [][]byte{{0xde, 0xad}, {}},
			},
		},
	}

	update, err := CellBlockUpdateFromBlock(block)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if update.BlockNumber != 100 {
		t.Fatalf("block number %d", update.BlockNumber)
	}
	if len(update.Inputs) != 1 || update.Inputs[0] != (domain.OutPoint{TxHash: spent.TxHash, Index: 3}) {
		t.Fatalf("inputs %+v", update.Inputs)
	}
	if len(update.Outputs) != 3 {
		t.Fatalf("got %d outputs, want 3", len(update.Outputs))
	}
	second := update.Outputs[1]
	if second.OutPoint != (domain.OutPoint{TxHash: txHash, Index: 0}) {
		t.Fatalf("outpoint %+v", second.OutPoint)
	}
	if second.Output.Lock.HashType != domain.HashTypeType || len(second.Output.Type) != 1 || second.Output.Type[0].HashType != domain.HashTypeData2 {
		t.Fatalf("scripts %+v", second.Output)
	}
	if !reflect.DeepEqual(second.Data, []byte{0xde, 0xad}) {
		t.Fatalf("data %x", second.Data)
	}
	if update.Outputs[2].OutPoint.Index != 1 {
		t.Fatalf("third output index %d", update.Outputs[2].OutPoint.Index)
	}

	relayed := RelayedBlockFromUpdate(domain.Header{Number: 100, BlockHash: common.HexToHash("0x100")}, update)
	rollback := CellBlockRollbackFromRelayed(relayed)
	if !reflect.DeepEqual(rollback.Inputs, update.Inputs) || len(rollback.Outputs) != 3 || rollback.Outputs[1] != second.OutPoint {
		t.Fatalf("rollback %+v", rollback)
	}
}

func TestParseHashTypeRejectsUnknown(t *testing.T) {
	if _, err := ParseHashType("data3"); err == nil {
		t.Fatal("expected error for unknown hash type")
	}
	if _, err := CellBlockUpdateFromBlock(ckb.Block{Transactions: []ckb.Transaction{{
		Outputs: []ckb.CellOutput{{Lock: ckb.Script{HashType: "bogus"}}},
	}}}); err == nil {
		t.Fatal("expected translation to fail on a bad hash type")
	}
}
