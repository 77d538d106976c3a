package domain

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/internal/asset"
)

// ErrZeroReserve is returned when a pool has an empty side.
var ErrZeroReserve = errors.New("pricing: zero reserve")

var (
	bpsDenominator = big.NewInt(10000)
	q192           = new(big.Int).Lsh(big.NewInt(1), 192)
	hundred        = decimal.NewFromInt(100)
)

// DerivePrice computes the price of one unit of the "in" token in "out"
// tokens, plus its inverse, from raw reserves. Both reserves are first scaled
// to 18 decimals; the inverse is built from the scaled reserves rather than by
// dividing the rounded price.
func DerivePrice(reserveIn *big.Int, decimalsIn uint8, reserveOut *big.Int, decimalsOut uint8) (price, inverse *big.Int, err error) {
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, nil, ErrZeroReserve
	}

	in := asset.ScaleTo18(reserveIn, decimalsIn)
	out := asset.ScaleTo18(reserveOut, decimalsOut)
	if in.Sign() == 0 || out.Sign() == 0 {
		return nil, nil, ErrZeroReserve
	}

	price = new(big.Int).Mul(out, asset.One)
	price.Quo(price, in)

	inverse = new(big.Int).Mul(in, asset.One)
	inverse.Quo(inverse, out)

	return price, inverse, nil
}

// PriceFromSqrtX96 converts a concentrated-liquidity sqrtPriceX96 into the
// 18-decimal price of token0 in token1 and its inverse, adjusting for token
// decimals.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (price01, price10 *big.Int, err error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, nil, ErrZeroReserve
	}

	// raw ratio token1/token0 = sqrtP^2 / 2^192
	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)

	// price01 = sq * 1e18 * 10^d0 / (2^192 * 10^d1)
	num := new(big.Int).Mul(sq, asset.One)
	num.Mul(num, asset.Pow10(decimals0))
	den := new(big.Int).Mul(q192, asset.Pow10(decimals1))
	price01 = num.Quo(num, den)

	// price10 = 2^192 * 1e18 * 10^d1 / (sq * 10^d0)
	num = new(big.Int).Mul(q192, asset.One)
	num.Mul(num, asset.Pow10(decimals1))
	den = new(big.Int).Mul(sq, asset.Pow10(decimals0))
	price10 = num.Quo(num, den)

	if price01.Sign() == 0 || price10.Sign() == 0 {
		return nil, nil, ErrZeroReserve
	}
	return price01, price10, nil
}

// AmountOut applies the constant-product formula with a fee in basis points:
// out = in*(1-fee)*reserveOut / (reserveIn + in*(1-fee)).
func AmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps int) (*big.Int, error) {
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrZeroReserve
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(10000-feeBps)))
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, bpsDenominator)
	den.Add(den, inWithFee)

	return num.Quo(num, den), nil
}

// PriceImpactPct estimates the percentage price movement a trade of amountIn
// causes against reserveIn: amountIn / (reserveIn + amountIn) * 100.
func PriceImpactPct(amountIn, reserveIn *big.Int) decimal.Decimal {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return decimal.Zero
	}
	in := decimal.NewFromBigInt(amountIn, 0)
	depth := decimal.NewFromBigInt(reserveIn, 0).Add(in)
	return in.Div(depth).Mul(hundred)
}

// SqrtPriceImpactPct returns the percentage move between two sqrtPriceX96
// values: |1 - (after/before)^2| * 100.
func SqrtPriceImpactPct(before, after *big.Int) decimal.Decimal {
	if before == nil || after == nil || before.Sign() == 0 {
		return decimal.Zero
	}
	b := decimal.NewFromBigInt(before, 0)
	a := decimal.NewFromBigInt(after, 0)
	ratio := a.Div(b)
	return decimal.NewFromInt(1).Sub(ratio.Mul(ratio)).Abs().Mul(hundred)
}
