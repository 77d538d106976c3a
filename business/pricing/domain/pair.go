package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Pair is a monitored token pair. TokenA is the traded asset and TokenB the
// asset prices are expressed in; the key ignores that orientation.
type Pair struct {
	Key    string
	TokenA common.Address
	TokenB common.Address
}

// NewPair builds a pair keeping the caller's orientation.
func NewPair(tokenA, tokenB common.Address) Pair {
	return Pair{
		Key:    PairKey(tokenA, tokenB),
		TokenA: tokenA,
		TokenB: tokenB,
	}
}

// PairKey lower-cases both addresses, orders them lexicographically and joins
// them, so (A,B) and (B,A) map to the same key.
func PairKey(a, b common.Address) string {
	x, y := strings.ToLower(a.Hex()), strings.ToLower(b.Hex())
	if y < x {
		x, y = y, x
	}
	return x + "-" + y
}

// SortTokens returns the two addresses in ascending byte order, the order
// pools use for token0/token1.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if strings.ToLower(b.Hex()) < strings.ToLower(a.Hex()) {
		return b, a
	}
	return a, b
}
