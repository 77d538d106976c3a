// Package domain contains the core domain types for the pricing context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/internal/asset"
)

// VenueKind identifies the pool math a venue uses.
type VenueKind string

const (
	KindConstantProduct       VenueKind = "constant_product"
	KindConcentratedLiquidity VenueKind = "concentrated_liquidity"
)

// PriceQuote is an immutable observation of a pool's price.
// Price is the amount of TokenB paid for one TokenA, in 18-decimal fixed
// point; Inverse is TokenA per TokenB.
type PriceQuote struct {
	Venue     string
	Pool      common.Address
	TokenA    common.Address
	TokenB    common.Address
	DecimalsA uint8
	DecimalsB uint8
	Price     *big.Int
	Inverse   *big.Int
	FeeBps    int

	// LiquidityB is the pool's TokenB balance in whole tokens.
	LiquidityB decimal.Decimal

	BlockNumber uint64
	Timestamp   time.Time
}

// PriceDecimal returns Price as a decimal.
func (q PriceQuote) PriceDecimal() decimal.Decimal {
	return asset.FixedToDecimal(q.Price)
}

// InverseDecimal returns Inverse as a decimal.
func (q PriceQuote) InverseDecimal() decimal.Decimal {
	return asset.FixedToDecimal(q.Inverse)
}

// PairKey returns the canonical key of the quoted pair.
func (q PriceQuote) PairKey() string {
	return PairKey(q.TokenA, q.TokenB)
}

// ReserveSnapshot holds a pool's token balances. Token0/Token1 follow the
// pool's own ordering.
type ReserveSnapshot struct {
	Pool      common.Address
	Token0    common.Address
	Token1    common.Address
	Reserve0  *big.Int
	Reserve1  *big.Int
	UpdatedAt time.Time
}

// Oriented returns the reserves as (in, out) for a swap of tokenIn.
func (r ReserveSnapshot) Oriented(tokenIn common.Address) (reserveIn, reserveOut *big.Int, ok bool) {
	switch tokenIn {
	case r.Token0:
		return r.Reserve0, r.Reserve1, true
	case r.Token1:
		return r.Reserve1, r.Reserve0, true
	}
	return nil, nil, false
}

// SwapQuote is the expected outcome of swapping AmountIn of TokenIn.
type SwapQuote struct {
	Venue          string
	Pool           common.Address
	TokenIn        common.Address
	TokenOut       common.Address
	AmountIn       *big.Int
	AmountOut      *big.Int
	PriceImpactPct decimal.Decimal
	FeeBps         int
}

// Liquidity is a pool's balance of one token.
type Liquidity struct {
	Pool     common.Address
	Token    common.Address
	Raw      *big.Int
	Decimals uint8
}

// Amount returns the liquidity in whole tokens.
func (l Liquidity) Amount() decimal.Decimal {
	return asset.ToDecimal(l.Raw, l.Decimals)
}
