package calldata

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownContract = errors.New("unknown contract")
	ErrEncoding        = errors.New("abi encoding failed")
)

// Encoder turns an assembled call into selector || ABI-encoded arguments.
type Encoder interface {
	Encode(call Call) ([]byte, error)
}

// ABIEncoder encodes against the embedded contract schemas.
type ABIEncoder struct{}

func NewABIEncoder() *ABIEncoder {
	return &ABIEncoder{}
}

func (e *ABIEncoder) Encode(call Call) ([]byte, error) {
	if call == nil {
		return nil, errors.New("call is required")
	}
	schema, err := Schema(call.Contract())
	if err != nil {
		return nil, err
	}
	data, err := schema.Pack(call.Method(), call.Args()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrEncoding, call.Contract(), call.Method(), err)
	}
	return data, nil
}

var defaultEncoder Encoder = NewABIEncoder()

// Encode encodes call with the package's ABI encoder.
func Encode(call Call) ([]byte, error) {
	return defaultEncoder.Encode(call)
}

// Selector returns the 4-byte method id a call encodes with.
func Selector(contract Contract, method string) ([4]byte, error) {
	var id [4]byte
	schema, err := Schema(contract)
	if err != nil {
		return id, err
	}
	m, ok := schema.Methods[method]
	if !ok {
		return id, fmt.Errorf("%s has no method %q", contract, method)
	}
	copy(id[:], m.ID)
	return id, nil
}
