package builder

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ValidatorAddress derives a verifier address from its public key: the
// low-order 20 bytes of keccak256(pubKey). The key is hashed as given, with
// no prefix stripping.
func ValidatorAddress(pubKey []byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(pubKey))
}
