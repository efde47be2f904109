package domain

import (
	"errors"
	"math/big"
	"testing"
)

func TestUint128FromBig(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	tests := []struct {
		name    string
		in      *big.Int
		want    Uint128
		wantErr error
	}{
		{name: "nil", in: nil, want: Uint128{}},
		{name: "small", in: big.NewInt(42), want: Uint128{Lo: 42}},
		{name: "high half", in: new(big.Int).Lsh(big.NewInt(3), 64), want: Uint128{Hi: 3}},
		{name: "max", in: max, want: Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}},
		{name: "overflow", in: new(big.Int).Lsh(big.NewInt(1), 128), wantErr: ErrUint128Overflow},
		{name: "negative", in: big.NewInt(-1), wantErr: ErrUint128Overflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Uint128FromBig(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			if tt.in != nil && got.Big().Cmp(tt.in) != 0 {
				t.Fatalf("Big() = %s, want %s", got.Big(), tt.in)
			}
		})
	}
}
