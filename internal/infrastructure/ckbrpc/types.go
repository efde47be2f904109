package ckbrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"ckbrelay/internal/ckb"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type rpcScript struct {
	CodeHash string `json:"code_hash"`
	HashType string `json:"hash_type"`
	Args     string `json:"args"`
}

type rpcOutPoint struct {
	TxHash string `json:"tx_hash"`
	Index  string `json:"index"`
}

type rpcCellInput struct {
	Since          string      `json:"since"`
	PreviousOutput rpcOutPoint `json:"previous_output"`
}

type rpcCellOutput struct {
	Capacity string     `json:"capacity"`
	Lock     rpcScript  `json:"lock"`
	Type     *rpcScript `json:"type"`
}

type rpcTransaction struct {
	Version     string          `json:"version"`
	Inputs      []rpcCellInput  `json:"inputs"`
	Outputs     []rpcCellOutput `json:"outputs"`
	OutputsData []string        `json:"outputs_data"`
	Witnesses   []string        `json:"witnesses"`
	Hash        string          `json:"hash"`
}

type rpcHeader struct {
	Version          string `json:"version"`
	CompactTarget    string `json:"compact_target"`
	Timestamp        string `json:"timestamp"`
	Number           string `json:"number"`
	Epoch            string `json:"epoch"`
	ParentHash       string `json:"parent_hash"`
	TransactionsRoot string `json:"transactions_root"`
	ProposalsHash    string `json:"proposals_hash"`
	ExtraHash        string `json:"extra_hash"`
	Dao              string `json:"dao"`
	Nonce            string `json:"nonce"`
	Hash             string `json:"hash"`
}

type rpcBlock struct {
	Header       rpcHeader        `json:"header"`
	Transactions []rpcTransaction `json:"transactions"`
	Extension    *string          `json:"extension"`
}

// ParseBlockJSON decodes a block in the node's JSON representation, as
// returned by get_block_by_number or saved from it.
func ParseBlockJSON(raw []byte) (ckb.Block, error) {
	var block rpcBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return ckb.Block{}, err
	}
	return block.toBlock()
}

func (b rpcBlock) toBlock() (ckb.Block, error) {
	header, err := b.Header.toHeader()
	if err != nil {
		return ckb.Block{}, err
	}
	block := ckb.Block{Header: header, Transactions: make([]ckb.Transaction, 0, len(b.Transactions))}
	if b.Extension != nil {
		if block.Extension, err = hexutil.Decode(*b.Extension); err != nil {
			return ckb.Block{}, fmt.Errorf("extension: %w", err)
		}
	}
	for i, tx := range b.Transactions {
		converted, err := tx.toTransaction()
		if err != nil {
			return ckb.Block{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		block.Transactions = append(block.Transactions, converted)
	}
	return block, nil
}

func (h rpcHeader) toHeader() (ckb.HeaderView, error) {
	var (
		view ckb.HeaderView
		err  error
	)
	if view.Version, err = parseHexUint32(h.Version); err != nil {
		return view, fmt.Errorf("version: %w", err)
	}
	if view.CompactTarget, err = parseHexUint32(h.CompactTarget); err != nil {
		return view, fmt.Errorf("compact_target: %w", err)
	}
	if view.Timestamp, err = parseHexUint(h.Timestamp); err != nil {
		return view, fmt.Errorf("timestamp: %w", err)
	}
	if view.Number, err = parseHexUint(h.Number); err != nil {
		return view, fmt.Errorf("number: %w", err)
	}
	if view.Epoch, err = parseHexUint(h.Epoch); err != nil {
		return view, fmt.Errorf("epoch: %w", err)
	}
	hashes := []struct {
		name string
		raw  string
		dst  *common.Hash
	}{
		{"parent_hash", h.ParentHash, &view.ParentHash},
		{"transactions_root", h.TransactionsRoot, &view.TransactionsRoot},
		{"proposals_hash", h.ProposalsHash, &view.ProposalsHash},
		{"extra_hash", h.ExtraHash, &view.ExtraHash},
		{"dao", h.Dao, &view.Dao},
		{"hash", h.Hash, &view.Hash},
	}
	for _, field := range hashes {
		if *field.dst, err = parseHash(field.raw); err != nil {
			return view, fmt.Errorf("%s: %w", field.name, err)
		}
	}
	if view.Nonce, err = parseUint128(h.Nonce); err != nil {
		return view, fmt.Errorf("nonce: %w", err)
	}
	return view, nil
}

func (t rpcTransaction) toTransaction() (ckb.Transaction, error) {
	var (
		tx  ckb.Transaction
		err error
	)
	if tx.Hash, err = parseHash(t.Hash); err != nil {
		return tx, fmt.Errorf("hash: %w", err)
	}
	if tx.Version, err = parseHexUint32(t.Version); err != nil {
		return tx, fmt.Errorf("version: %w", err)
	}
	for i, in := range t.Inputs {
		since, err := parseHexUint(in.Since)
		if err != nil {
			return tx, fmt.Errorf("input %d since: %w", i, err)
		}
		prev, err := in.PreviousOutput.toOutPoint()
		if err != nil {
			return tx, fmt.Errorf("input %d: %w", i, err)
		}
		tx.Inputs = append(tx.Inputs, ckb.CellInput{PreviousOutput: prev, Since: since})
	}
	for i, out := range t.Outputs {
		converted, err := out.toCellOutput()
		if err != nil {
			return tx, fmt.Errorf("output %d: %w", i, err)
		}
		tx.Outputs = append(tx.Outputs, converted)
	}
	for i, raw := range t.OutputsData {
		data, err := hexutil.Decode(raw)
		if err != nil {
			return tx, fmt.Errorf("outputs_data %d: %w", i, err)
		}
		tx.OutputsData = append(tx.OutputsData, data)
	}
	for i, raw := range t.Witnesses {
		witness, err := hexutil.Decode(raw)
		if err != nil {
			return tx, fmt.Errorf("witness %d: %w", i, err)
		}
		tx.Witnesses = append(tx.Witnesses, witness)
	}
	return tx, nil
}

func (o rpcOutPoint) toOutPoint() (ckb.OutPoint, error) {
	hash, err := parseHash(o.TxHash)
	if err != nil {
		return ckb.OutPoint{}, fmt.Errorf("tx_hash: %w", err)
	}
	index, err := parseHexUint32(o.Index)
	if err != nil {
		return ckb.OutPoint{}, fmt.Errorf("index: %w", err)
	}
	return ckb.OutPoint{TxHash: hash, Index: index}, nil
}

func (o rpcCellOutput) toCellOutput() (ckb.CellOutput, error) {
	capacity, err := parseHexUint(o.Capacity)
	if err != nil {
		return ckb.CellOutput{}, fmt.Errorf("capacity: %w", err)
	}
	lock, err := o.Lock.toScript()
	if err != nil {
		return ckb.CellOutput{}, fmt.Errorf("lock: %w", err)
	}
	out := ckb.CellOutput{Capacity: capacity, Lock: lock}
	if o.Type != nil {
		typ, err := o.Type.toScript()
		if err != nil {
			return ckb.CellOutput{}, fmt.Errorf("type: %w", err)
		}
		out.Type = &typ
	}
	return out, nil
}

func (s rpcScript) toScript() (ckb.Script, error) {
	codeHash, err := parseHash(s.CodeHash)
	if err != nil {
		return ckb.Script{}, fmt.Errorf("code_hash: %w", err)
	}
	args, err := hexutil.Decode(s.Args)
	if err != nil {
		return ckb.Script{}, fmt.Errorf("args: %w", err)
	}
	return ckb.Script{CodeHash: codeHash, HashType: s.HashType, Args: args}, nil
}

func parseHash(value string) (common.Hash, error) {
	raw, err := hexutil.Decode(value)
	if err != nil {
		return common.Hash{}, err
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("hash has %d bytes, want %d", len(raw), common.HashLength)
	}
	return common.BytesToHash(raw), nil
}

func parseHexUint(value string) (uint64, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return 0, errors.New("empty hex value")
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

func parseHexUint32(value string) (uint32, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return 0, errors.New("empty hex value")
	}
	parsed, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(parsed), nil
}

func parseUint128(value string) ([16]byte, error) {
	var out [16]byte
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return out, errors.New("empty hex value")
	}
	parsed, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return out, fmt.Errorf("invalid hex %q", value)
	}
	if parsed.Sign() < 0 || parsed.BitLen() > 128 {
		return out, fmt.Errorf("%s exceeds 128 bits", value)
	}
	parsed.FillBytes(out[:])
	return out, nil
}

func formatHexUint(value uint64) string {
	return fmt.Sprintf("0x%x", value)
}
