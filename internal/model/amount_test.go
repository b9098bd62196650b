package model

import (
	"math/big"
	"testing"
)

func TestFormatTokenAmount(t *testing.T) {
	cases := []struct {
		value    *big.Int
		decimals uint8
		want     string
	}{
		{nil, 18, "0"},
		{big.NewInt(1500), 0, "1500"},
		{big.NewInt(1500), 3, "1.500"},
		{big.NewInt(-25), 2, "-0.25"},
		{new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), 18, "1.000000000000000000"},
	}
	for _, tc := range cases {
		if got := FormatTokenAmount(tc.value, tc.decimals); got != tc.want {
			t.Fatalf("FormatTokenAmount(%v, %d) = %q, want %q", tc.value, tc.decimals, got, tc.want)
		}
	}
}
