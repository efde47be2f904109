package domain

import (
	"errors"
	"math/big"
)

var ErrUint128Overflow = errors.New("value does not fit in 128 bits")

// Uint128 is an unsigned 128-bit integer stored as two 64-bit halves.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

func Uint128FromUint64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Uint128FromBig converts v, rejecting negative values and values >= 2^128.
func Uint128FromBig(v *big.Int) (Uint128, error) {
	if v == nil {
		return Uint128{}, nil
	}
	if v.Sign() < 0 || v.BitLen() > 128 {
		return Uint128{}, ErrUint128Overflow
	}
	lo := new(big.Int).And(v, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(v, 64)
	return Uint128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}

// Big returns a freshly allocated big.Int holding u.
func (u Uint128) Big() *big.Int {
	v := new(big.Int).SetUint64(u.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}
