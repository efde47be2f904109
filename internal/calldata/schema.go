package calldata

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract names a destination contract whose call layout this package knows.
type Contract string

const (
	ImageCell   Contract = "image-cell"
	LightClient Contract = "light-client"
	Metadata    Contract = "metadata"
)

const (
	MethodUpdate            = "update"
	MethodRollback          = "rollback"
	MethodSetState          = "setState"
	MethodAppendMetadata    = "appendMetadata"
	MethodSetCkbRelatedInfo = "setCkbRelatedInfo"
)

//go:embed abi/*.json
var schemaFS embed.FS

var schemaFiles = map[Contract]string{
	ImageCell:   "abi/image_cell.json",
	LightClient: "abi/light_client.json",
	Metadata:    "abi/metadata.json",
}

var (
	imageCellABI   = mustLoadSchema(ImageCell)
	lightClientABI = mustLoadSchema(LightClient)
	metadataABI    = mustLoadSchema(Metadata)
)

func LoadImageCellABI() *abi.ABI   { return imageCellABI }
func LoadLightClientABI() *abi.ABI { return lightClientABI }
func LoadMetadataABI() *abi.ABI    { return metadataABI }

// Schema returns the parsed ABI of contract.
func Schema(contract Contract) (*abi.ABI, error) {
	switch contract {
	case ImageCell:
		return imageCellABI, nil
	case LightClient:
		return lightClientABI, nil
	case Metadata:
		return metadataABI, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContract, contract)
	}
}

func Contracts() []Contract {
	return []Contract{ImageCell, LightClient, Metadata}
}

func mustLoadSchema(contract Contract) *abi.ABI {
	raw, err := schemaFS.ReadFile(schemaFiles[contract])
	if err != nil {
		panic(fmt.Errorf("read %s schema: %w", contract, err))
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Errorf("parse %s schema: %w", contract, err))
	}
	return &parsed
}
