package calldata

import (
	"errors"
	"fmt"

	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrShortPayload    = errors.New("payload shorter than a method selector")
	ErrUnknownSelector = errors.New("unknown method selector")
)

// Decode parses a payload produced for contract back into its typed call.
func Decode(contract Contract, data []byte) (Call, error) {
	schema, err := Schema(contract)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, ErrShortPayload
	}
	method, err := schema.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %s 0x%x", ErrUnknownSelector, contract, data[:4])
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s.%s: %w", contract, method.Name, err)
	}

	switch {
	case contract == ImageCell && method.Name == MethodUpdate:
		var args struct{ Blocks []blockUpdateABI }
		if err := copyArgs(method, &args, values); err != nil {
			return nil, err
		}
		blocks := make([]CellBlockUpdate, 0, len(args.Blocks))
		for _, b := range args.Blocks {
			outputs := make([]domain.CellInfo, 0, len(b.TxOutputs))
			for _, c := range b.TxOutputs {
				outputs = append(outputs, fromCellInfoABI(c))
			}
			blocks = append(blocks, NewCellBlockUpdate(b.BlockNumber, fromOutPointsABI(b.TxInputs), outputs))
		}
		return NewCellUpdateCall(blocks), nil
	case contract == ImageCell && method.Name == MethodRollback:
		var args struct{ Blocks []blockRollbackABI }
		if err := copyArgs(method, &args, values); err != nil {
			return nil, err
		}
		blocks := make([]CellBlockRollback, 0, len(args.Blocks))
		for _, b := range args.Blocks {
			blocks = append(blocks, NewCellBlockRollback(fromOutPointsABI(b.TxInputs), fromOutPointsABI(b.TxOutputs)))
		}
		return NewCellRollbackCall(blocks), nil
	case contract == LightClient && method.Name == MethodUpdate:
		var args struct{ Headers []headerABI }
		if err := copyArgs(method, &args, values); err != nil {
			return nil, err
		}
		headers := make([]domain.Header, 0, len(args.Headers))
		for _, h := range args.Headers {
			header, err := fromHeaderABI(h)
			if err != nil {
				return nil, err
			}
			headers = append(headers, header)
		}
		return NewHeaderUpdateCall(headers), nil
	case contract == LightClient && method.Name == MethodRollback:
		var args struct{ BlockHashes []common.Hash }
		if err := copyArgs(method, &args, values); err != nil {
			return nil, err
		}
		return NewHeaderRollbackCall(args.BlockHashes), nil
	case contract == LightClient && method.Name == MethodSetState:
		var args struct{ AllowRead bool }
		if err := copyArgs(method, &args, values); err != nil {
			return nil, err
		}
		return NewSetStateCall(args.AllowRead), nil
	case contract == Metadata && method.Name == MethodAppendMetadata:
		var args struct{ Metadata metadataABIStruct }
		if err := copyArgs(method, &args, values); err != nil {
			return nil, err
		}
		return NewAppendMetadataCall(fromMetadataABI(args.Metadata)), nil
	case contract == Metadata && method.Name == MethodSetCkbRelatedInfo:
		var args struct{ Info ckbRelatedInfoABI }
		if err := copyArgs(method, &args, values); err != nil {
			return nil, err
		}
		return NewSetCkbRelatedInfoCall(fromCkbRelatedInfoABI(args.Info)), nil
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownSelector, contract, method.Name)
}

// copyArgs copies the single unpacked argument into the first field of dst.
func copyArgs(method *abi.Method, dst any, values []any) error {
	if err := method.Inputs.Copy(dst, values); err != nil {
		return fmt.Errorf("copy %s arguments: %w", method.Name, err)
	}
	return nil
}
